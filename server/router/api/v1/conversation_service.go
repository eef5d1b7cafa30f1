package v1

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "github.com/hrygo/orioncx/internal/errors"
	aiconv "github.com/hrygo/orioncx/plugin/ai/conversation"
	convsvc "github.com/hrygo/orioncx/server/service/conversation"
)

// StartConversation creates a conversation and returns it with the greeting.
// POST /api/v1/conversations/start
func (s *APIV1Service) StartConversation(c echo.Context) error {
	var req StartConversationRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("INVALID_REQUEST_BODY", "request body is not valid JSON")
	}

	conversation, err := s.ConversationService.StartConversation(c.Request().Context(), &convsvc.StartRequest{
		UserID:   strings.TrimSpace(req.UserID),
		Language: strings.TrimSpace(req.Language),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, convertConversationToResponse(conversation))
}

// GetConversation returns a stored conversation.
// GET /api/v1/conversations/:id
func (s *APIV1Service) GetConversation(c echo.Context) error {
	conversation, err := s.ConversationService.GetConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convertConversationToResponse(conversation))
}

// SendMessage answers a text message.
// POST /api/v1/conversations/:id/message
func (s *APIV1Service) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("INVALID_REQUEST_BODY", "request body is not valid JSON")
	}

	conversation, err := s.ConversationService.ProcessMessage(c.Request().Context(), c.Param("id"), strings.TrimSpace(req.Content))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convertConversationToResponse(conversation))
}

// SendAudioMessage transcribes the multipart "audio" file and answers it.
// POST /api/v1/conversations/:id/message_audio
func (s *APIV1Service) SendAudioMessage(c echo.Context) error {
	header, err := c.FormFile("audio")
	if err != nil {
		return apperrors.Validation("AUDIO_REQUIRED", "no audio file provided")
	}
	if !strings.HasPrefix(header.Header.Get(echo.HeaderContentType), "audio/") {
		return apperrors.Validation("INVALID_AUDIO_TYPE", "invalid file type, must be an audio file").
			WithDetail("content_type", header.Header.Get(echo.HeaderContentType))
	}

	file, err := header.Open()
	if err != nil {
		return apperrors.BadRequest("INVALID_AUDIO", "failed to read the audio file")
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioBytes+1))
	if err != nil {
		return apperrors.BadRequest("INVALID_AUDIO", "failed to read the audio file")
	}
	if len(audio) > maxAudioBytes {
		return apperrors.Validation("AUDIO_TOO_LARGE", "audio file exceeds 25 MB")
	}

	conversation, err := s.ConversationService.ProcessAudio(c.Request().Context(), c.Param("id"), audio, header.Filename)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convertConversationToResponse(conversation))
}

// CreateSummary ends a conversation with the requested status.
// POST /api/v1/conversations/:id/summary
func (s *APIV1Service) CreateSummary(c echo.Context) error {
	var req CreateSummaryRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("INVALID_REQUEST_BODY", "request body is not valid JSON")
	}
	if strings.TrimSpace(req.ConversationStatus) == "" {
		return apperrors.Validation("INVALID_STATUS", "conversation_status is required and must be a string")
	}
	status, err := aiconv.ParseStatus(req.ConversationStatus)
	if err != nil {
		return err
	}

	if _, err := s.ConversationService.EndConversation(c.Request().Context(), c.Param("id"), status); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
