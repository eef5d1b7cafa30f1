package v1

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/orioncx/internal/profile"
	convsvc "github.com/hrygo/orioncx/server/service/conversation"
)

// maxAudioBytes is the largest upload accepted by the transcription model.
const maxAudioBytes = 25 << 20

type APIV1Service struct {
	Profile             *profile.Profile
	ConversationService convsvc.Service
}

func NewAPIV1Service(profile *profile.Profile, conversationService convsvc.Service) *APIV1Service {
	return &APIV1Service{
		Profile:             profile,
		ConversationService: conversationService,
	}
}

// RegisterRoutes registers the REST endpoints with the given Echo instance.
// Extra middlewares, such as the rate limiter, apply to the API group only.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo, mws ...echo.MiddlewareFunc) {
	group := echoServer.Group("/api/v1", append([]echo.MiddlewareFunc{middleware.CORS()}, mws...)...)

	conversations := group.Group("/conversations")
	conversations.POST("/start", s.StartConversation)
	conversations.GET("/:id", s.GetConversation)
	conversations.POST("/:id/message", s.SendMessage)
	conversations.POST("/:id/message_audio", s.SendAudioMessage, middleware.BodyLimit("26M"))
	conversations.POST("/:id/summary", s.CreateSummary)
}
