package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/agent"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/discovery"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/logging"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
)

// Runner is the unary discovery pipeline.
type Runner interface {
	Run(ctx context.Context, profile models.Profile, opts discovery.Options) (*discovery.Result, error)
}

type A2AHandler struct {
	pipeline Runner
	logger   *zap.Logger
}

func NewA2AHandler(pipeline Runner, logger *zap.Logger) *A2AHandler {
	return &A2AHandler{
		pipeline: pipeline,
		logger:   logging.OrNop(logger),
	}
}

const profilePrompt = "Please send your founder profile as JSON with goal_type, time_commitment, budget_range, " +
	"interest_area, sub_interest_area, work_style, skill_strength, experience_summary and founder_psychology."

var sectionTitles = []struct {
	key   string
	title string
}{
	{models.SectionProfileAnalysis, "Profile Analysis"},
	{models.SectionIdeasResearch, "Idea Research Report"},
	{models.SectionRecommendations, "Personalized Recommendations"},
}

// HandleDiscovery processes A2A messages carrying a founder profile.
func (h *A2AHandler) HandleDiscovery(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read request body", zap.Error(err))
		h.sendErrorResponse(c, nil, "Failed to read request body", CodeParseError)
		return
	}
	h.logger.Debug("A2A request received", zap.ByteString("body", bodyBytes))

	var rpcReq JSONRPCRequest
	if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil || rpcReq.Method == "" {
		// Some clients post the message params without the JSON-RPC wrapper.
		h.handleDirectMessage(c, bodyBytes)
		return
	}

	if rpcReq.JSONRPC != "2.0" {
		h.logger.Warn("Invalid JSON-RPC version", zap.String("jsonrpc", rpcReq.JSONRPC))
		h.sendErrorResponse(c, rpcReq.ID, "Invalid JSON-RPC version", CodeInvalidRequest)
		return
	}

	switch rpcReq.Method {
	case "agent/task", "message/send":
		h.handleTask(c, rpcReq)
	default:
		h.logger.Warn("Unknown method", zap.String("method", rpcReq.Method))
		h.sendErrorResponse(c, rpcReq.ID, fmt.Sprintf("Method not found: %s", rpcReq.Method), CodeMethodNotFound)
	}
}

// handleDirectMessage handles a message without the JSON-RPC wrapper.
func (h *A2AHandler) handleDirectMessage(c *gin.Context, bodyBytes []byte) {
	var msgParams MessageParams
	if err := json.Unmarshal(bodyBytes, &msgParams); err != nil || len(msgParams.Message.Parts) == 0 {
		h.logger.Warn("Request is neither JSON-RPC nor a direct message")
		h.sendErrorResponse(c, nil, "Invalid request format", CodeParseError)
		return
	}

	id := json.RawMessage(`"direct-message"`)
	h.sendSuccessResponse(c, id, h.runMessage(c.Request.Context(), "direct-message", msgParams.Message, c.GetHeader("X-User-ID")))
}

func (h *A2AHandler) handleTask(c *gin.Context, rpcReq JSONRPCRequest) {
	var msgParams MessageParams
	if err := json.Unmarshal(rpcReq.Params, &msgParams); err != nil {
		h.logger.Warn("Invalid message params", zap.Error(err))
		h.sendErrorResponse(c, rpcReq.ID, "Invalid parameters", CodeInvalidParams)
		return
	}

	taskID := msgParams.Message.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	h.sendSuccessResponse(c, rpcReq.ID, h.runMessage(c.Request.Context(), taskID, msgParams.Message, c.GetHeader("X-User-ID")))
}

func (h *A2AHandler) runMessage(ctx context.Context, taskID string, msg A2AMessage, user string) TaskResult {
	raw, ok := extractProfile(msg)
	if !ok {
		return h.createTaskResult(taskID, msg.ContextID, StateInputRequired, profilePrompt, nil)
	}

	profile, err := models.ParseProfile(raw)
	if err != nil {
		return h.createTaskResult(taskID, msg.ContextID, StateInputRequired, err.Error()+". "+profilePrompt, nil)
	}
	if user == "" {
		user = "a2a"
	}

	log := h.logger.With(zap.String("task_id", taskID))
	log.Info("Running discovery for A2A task", zap.String("interest_area", profile.InterestArea))

	res, err := h.pipeline.Run(ctx, profile, discovery.Options{RunID: uuid.NewString(), UserID: user})
	if err != nil {
		log.Warn("Discovery failed", zap.Error(err))
		return h.createTaskResult(taskID, msg.ContextID, StateFailed, discovery.UserMessage(err), nil)
	}

	summary := fmt.Sprintf("Startup discovery complete for %s (run %s).", profile.InterestArea, res.RunID)
	if res.Metrics.CacheHit {
		summary += " Served from cache."
	}
	return h.createTaskResult(taskID, msg.ContextID, StateCompleted, summary, sectionArtifacts(res.Outputs))
}

// extractProfile finds a profile object in a data part or a JSON text part.
// Data parts may also hold an array of earlier message parts, newest last.
func extractProfile(msg A2AMessage) (map[string]any, bool) {
	for _, part := range msg.Parts {
		switch part.Kind {
		case "data":
			if m, ok := profileFromJSON(part.Data); ok {
				return m, true
			}
			var history []MessagePart
			if err := json.Unmarshal(part.Data, &history); err == nil {
				for i := len(history) - 1; i >= 0; i-- {
					if history[i].Kind == "text" {
						if m, ok := profileFromText(history[i].Text); ok {
							return m, true
						}
					}
				}
			}
		case "text":
			if m, ok := profileFromText(part.Text); ok {
				return m, true
			}
		}
	}
	return nil, false
}

func profileFromText(text string) (map[string]any, bool) {
	clean := strings.TrimSpace(text)
	clean = strings.ReplaceAll(clean, "<p>", "")
	clean = strings.ReplaceAll(clean, "</p>", "")
	clean = strings.TrimSpace(clean)
	if !strings.HasPrefix(clean, "{") {
		return nil, false
	}
	return profileFromJSON([]byte(clean))
}

func profileFromJSON(b []byte) (map[string]any, bool) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, false
	}
	if inner, ok := m["profile"].(map[string]any); ok {
		return inner, true
	}
	for _, key := range []string{"interest_area", "goal_type", "skill_strength", "experience_summary"} {
		if _, ok := m[key]; ok {
			return m, true
		}
	}
	return nil, false
}

func sectionArtifacts(out models.Outputs) []Artifact {
	sections := out.Map()
	var artifacts []Artifact
	for _, s := range sectionTitles {
		text := sections[s.key]
		if text == "" {
			continue
		}
		artifacts = append(artifacts, Artifact{
			ArtifactID: uuid.NewString(),
			Name:       s.title,
			Parts:      []MessagePart{TextPart(text)},
		})
	}
	return artifacts
}

func (h *A2AHandler) createTaskResult(taskID, contextID, state, text string, artifacts []Artifact) TaskResult {
	return TaskResult{
		ID:        taskID,
		ContextID: contextID,
		Kind:      "task",
		Status: TaskStatus{
			State:     state,
			Timestamp: Timestamp(),
			Message: &A2AMessage{
				Kind:      "message",
				Role:      RoleAgent,
				MessageID: uuid.NewString(),
				TaskID:    taskID,
				Parts:     []MessagePart{TextPart(text)},
			},
		},
		Artifacts: artifacts,
	}
}

// ServeAgentCard serves the agent card.
func (h *A2AHandler) ServeAgentCard(c *gin.Context) {
	if err := agent.LoadAgentCard(); err != nil {
		h.logger.Error("Error loading agent card", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Agent card not available"})
		return
	}
	c.Data(http.StatusOK, "application/json", agent.AgentCardData)
}

func (h *A2AHandler) sendSuccessResponse(c *gin.Context, id json.RawMessage, result TaskResult) {
	h.logger.Debug("Sending A2A task result", zap.String("task_id", result.ID), zap.String("state", result.Status.State))
	c.JSON(http.StatusOK, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      rawID(id),
		Result:  result,
	})
}

func (h *A2AHandler) sendErrorResponse(c *gin.Context, id json.RawMessage, message string, code int) {
	h.logger.Debug("Sending JSON-RPC error", zap.Int("code", code), zap.String("message", message))
	// JSON-RPC errors are sent with 200 OK.
	c.JSON(http.StatusOK, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      rawID(id),
		Error:   &RPCError{Code: code, Message: message},
	})
}

func rawID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
