package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	chatmodel "github.com/praxislabs/praxis/backend/internal/model/chat"
	"github.com/praxislabs/praxis/backend/internal/service/ai"
	chatservice "github.com/praxislabs/praxis/backend/internal/service/chat"
	"github.com/praxislabs/praxis/backend/pkg/utils"
)

// fallbackMarker prefixes every synthesized reply so failures are
// recognizable in stored transcripts.
const fallbackMarker = "[tutor unavailable]"

// Generator produces tutor replies. A nil Generator means generation is not
// configured and every exchange takes the fallback path.
type Generator interface {
	StreamingEnabled() bool
	GenerateReply(ctx context.Context, system string, history []chatmodel.Message, query string) (*schema.Message, error)
	StreamReply(ctx context.Context, system string, history []chatmodel.Message, query string) (*schema.StreamReader[*schema.Message], error)
}

// Handler runs the message exchange and serves session history.
type Handler struct {
	chatSvc   *chatservice.Service
	generator Generator
	resolver  *ai.Resolver
}

// New creates the chat handler. generator may be nil.
func New(chatSvc *chatservice.Service, generator Generator, resolver *ai.Resolver) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		generator: generator,
		resolver:  resolver,
	}
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/message", h.handleSendMessage)
	r.Get("/history/{sessionID}", h.handleGetHistory)
}

// handleSendMessage runs one exchange: resolve the session, persist the user
// turn, rebuild the transcript, stream the reply, persist the assistant turn.
// The response body is the raw reply text, chunked as fragments arrive; the
// resolved session id travels in the X-Session-ID header.
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID    string `json:"user_id"`
		ModuleID  string `json:"module_id"`
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()

	session, err := h.resolveSession(ctx, payload.SessionID, payload.UserID, payload.ModuleID)
	if err != nil {
		respondResolveError(w, err)
		return
	}

	// The user turn must be committed before generation starts so a crash
	// mid-generation never loses it. Empty text is accepted as-is.
	if _, err := h.chatSvc.SaveMessage(ctx, chatmodel.Message{
		SessionID: session.ID,
		Role:      chatmodel.RoleUser,
		Content:   payload.Message,
	}); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	// Stateless reconstruction: reload the transcript and split positionally.
	// The last row is the user turn saved above.
	transcript, err := h.chatSvc.LoadTranscript(ctx, session.ID)
	if err != nil || len(transcript) == 0 {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	prior := transcript[:len(transcript)-1]
	current := transcript[len(transcript)-1]

	utils.SetupStreamHeaders(w)
	w.Header().Set("X-Session-ID", session.ID)
	w.WriteHeader(http.StatusOK)

	system := h.resolver.Resolve(session.ModuleID)
	full := h.relayReply(ctx, w, flusher, session.ID, system, prior, current.Content)

	// The write runs on its own connection with cancellation stripped: the
	// client may already be gone, but the assistant turn must not be lost.
	if _, err := h.chatSvc.SaveMessageDetached(ctx, chatmodel.Message{
		SessionID: session.ID,
		Role:      chatmodel.RoleAssistant,
		Content:   full,
	}); err != nil {
		log.Printf("[chat] failed to persist assistant message for session=%s: %v", session.ID, err)
	}
}

func (h *Handler) resolveSession(ctx context.Context, sessionID, userID, moduleID string) (chatmodel.Session, error) {
	if sessionID != "" {
		return h.chatSvc.GetSession(ctx, sessionID)
	}
	return h.chatSvc.CreateSession(ctx, userID, moduleID)
}

func respondResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, chatservice.ErrUserNotFound):
		utils.RespondError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, chatservice.ErrModuleRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "failed to resolve session")
	}
}

// relayReply streams the reply to the client and returns the accumulated
// full text. Provider failures never produce an HTTP error: before any
// fragment was relayed they are replaced by a synthesized fallback reply,
// after that the partial accumulation is kept.
func (h *Handler) relayReply(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID, system string, prior []chatmodel.Message, query string) string {
	if h.generator == nil {
		return h.relayFallback(w, flusher, sessionID, errors.New("generation client not configured"))
	}

	if !h.generator.StreamingEnabled() {
		response, err := h.generator.GenerateReply(ctx, system, prior, query)
		if err != nil {
			return h.relayFallback(w, flusher, sessionID, err)
		}
		utils.WriteChunk(w, flusher, response.Content)
		return response.Content
	}

	stream, err := h.generator.StreamReply(ctx, system, prior, query)
	if err != nil {
		return h.relayFallback(w, flusher, sessionID, err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			if full.Len() == 0 {
				return h.relayFallback(w, flusher, sessionID, recvErr)
			}
			log.Printf("[chat] stream aborted for session=%s, keeping partial reply: %v", sessionID, recvErr)
			break
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		full.WriteString(chunk.Content)
		utils.WriteChunk(w, flusher, chunk.Content)
	}

	return full.String()
}

func (h *Handler) relayFallback(w http.ResponseWriter, flusher http.Flusher, sessionID string, cause error) string {
	log.Printf("[chat] generation failed for session=%s: %v", sessionID, cause)
	text := fmt.Sprintf("%s The tutor could not generate a reply. Error: %v", fallbackMarker, cause)
	utils.WriteChunk(w, flusher, text)
	return text
}

// handleGetHistory returns the ordered transcript of a session. An unknown
// session is 404; a known session with no messages is an empty list.
func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	transcript, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if errors.Is(err, chatservice.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcript)
}
