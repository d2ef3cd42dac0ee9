// Package mcp provides a Model Context Protocol server for slotfill.
//
// It exposes extraction, form filling, feedback and profile storage as MCP
// tools, and store statistics as an MCP resource. Browser extensions and
// agents use it as the collaborator layer around the core: they scan slots,
// call slotfill_fill, write the values and report back with slotfill_feedback.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/slotfill/internal/feedback"
	"github.com/hurttlocker/slotfill/internal/fill"
	"github.com/hurttlocker/slotfill/internal/model"
	"github.com/hurttlocker/slotfill/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Engines *fill.Holder
	Store   store.Store       // optional; profile tools are skipped without it
	Learner *feedback.Learner // defaults to one backed by Store
	Version string            // version string for MCP server info
}

// handler carries one server's collaborators. dbMu serializes tool calls
// that touch the database: mcp-go dispatches handlers concurrently and
// SQLite allows a single writer.
type handler struct {
	engines *fill.Holder
	store   store.Store
	learner *feedback.Learner

	dbMu sync.Mutex
}

// NewServer creates a configured MCP server with all slotfill tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"slotfill",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	learner := cfg.Learner
	if learner == nil {
		if cfg.Store != nil {
			learner = feedback.NewLearner(feedback.WithStore(cfg.Store))
		} else {
			learner = feedback.NewLearner()
		}
	}

	h := &handler{engines: cfg.Engines, store: cfg.Store, learner: learner}
	h.registerExtractTool(s)
	h.registerFillTool(s)
	h.registerFeedbackTool(s)
	h.registerAccuracyTool(s)
	h.registerPatternsTool(s)

	if cfg.Store != nil {
		h.registerProfilePutTool(s)
		h.registerStatsResource(s)
	}
	return s
}

// --- Tools ---

func (h *handler) registerExtractTool(s *server.MCPServer) {
	tool := mcp.NewTool("slotfill_extract",
		mcp.WithDescription("Extract typed entity values (email, phone, principal investigator, address, ...) from free profile text. Returns one value per entity type with confidence and the pass that found it."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Free-text profile"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		engine, err := h.engines.Load()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		values := engine.Extract(text).Ordered(engine.Library())
		if values == nil {
			values = []model.ExtractedValue{}
		}
		data, _ := json.MarshalIndent(values, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (h *handler) registerFillTool(s *server.MCPServer) {
	tool := mcp.NewTool("slotfill_fill",
		mcp.WithDescription("Match profile values onto form slots. Pass either the profile text or the id of a stored profile, plus the slots as a JSON array of {id, name, type, label, context, placeholder, attributes}. Returns one assignment per matched slot and an overall confidence."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("slots",
			mcp.Required(),
			mcp.Description("JSON array of slot descriptors"),
		),
		mcp.WithString("text",
			mcp.Description("Free-text profile (takes precedence over profile_id)"),
		),
		mcp.WithString("profile_id",
			mcp.Description("Id of a stored profile to fill from"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("slots")
		if err != nil {
			return mcp.NewToolResultError("slots is required"), nil
		}
		var slots []model.SlotDescriptor
		if err := json.Unmarshal([]byte(raw), &slots); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("slots must be a JSON array of slot descriptors: %v", err)), nil
		}

		text, _ := req.RequireString("text")
		if strings.TrimSpace(text) == "" {
			profileID, _ := req.RequireString("profile_id")
			if profileID == "" {
				return mcp.NewToolResultError("text or profile_id is required"), nil
			}
			if h.store == nil {
				return mcp.NewToolResultError("profile_id requires a profile store"), nil
			}
			h.dbMu.Lock()
			p, err := h.store.GetProfile(ctx, profileID)
			h.dbMu.Unlock()
			if errors.Is(err, store.ErrNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("profile %q not found", profileID)), nil
			}
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("loading profile: %v", err)), nil
			}
			text = p.Content
		}

		engine, err := h.engines.Load()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := engine.Fill(ctx, text, slots)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fill error: %v", err)), nil
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (h *handler) registerFeedbackTool(s *server.MCPServer) {
	tool := mcp.NewTool("slotfill_feedback",
		mcp.WithDescription("Record what the user did with a filled value: accepted it (was_correct=true), corrected it (actual_value set) or rejected it. Returns the stored record and the profile's updated accuracy."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("profile_id",
			mcp.Required(),
			mcp.Description("Profile the value came from"),
		),
		mcp.WithString("slot_id",
			mcp.Required(),
			mcp.Description("Slot id (or name) the value was written to"),
		),
		mcp.WithBoolean("was_correct",
			mcp.Required(),
			mcp.Description("True when the user kept the predicted value"),
		),
		mcp.WithString("predicted_value",
			mcp.Description("Value that was filled in"),
		),
		mcp.WithString("actual_value",
			mcp.Description("Value the user replaced it with, if any"),
		),
		mcp.WithString("entity_type",
			mcp.Description("Entity type of the filled value"),
		),
		mcp.WithNumber("confidence",
			mcp.Description("Match confidence reported by slotfill_fill"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		h.dbMu.Lock()
		defer h.dbMu.Unlock()

		wasCorrect, err := req.RequireBool("was_correct")
		if err != nil {
			return mcp.NewToolResultError("was_correct is required"), nil
		}
		rec := model.FeedbackRecord{WasCorrect: wasCorrect}
		rec.ProfileID, _ = req.RequireString("profile_id")
		rec.SlotID, _ = req.RequireString("slot_id")
		rec.PredictedValue, _ = req.RequireString("predicted_value")
		rec.ActualValue, _ = req.RequireString("actual_value")
		if et, err := req.RequireString("entity_type"); err == nil {
			rec.EntityType = model.EntityType(et)
		}
		if c, err := req.RequireFloat("confidence"); err == nil {
			rec.Confidence = c
		}

		stored, err := h.learner.RecordOutcome(ctx, rec)
		if errors.Is(err, feedback.ErrInvalidRecord) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("feedback error: %v", err)), nil
		}

		out := struct {
			Record model.FeedbackRecord  `json:"record"`
			Stats  feedback.ProfileStats `json:"stats"`
		}{stored, h.learner.Stats(stored.ProfileID)}
		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (h *handler) registerAccuracyTool(s *server.MCPServer) {
	tool := mcp.NewTool("slotfill_accuracy",
		mcp.WithDescription("Show a profile's fill accuracy. With slot_id, also list the values the user accepted for that slot and their recurring prefixes/suffixes."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("profile_id",
			mcp.Required(),
			mcp.Description("Profile id"),
		),
		mcp.WithString("slot_id",
			mcp.Description("Optional slot id for per-slot statistics"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		h.dbMu.Lock()
		defer h.dbMu.Unlock()

		profileID, err := req.RequireString("profile_id")
		if err != nil || profileID == "" {
			return mcp.NewToolResultError("profile_id is required"), nil
		}
		if h.store != nil {
			if err := h.learner.Load(ctx, profileID); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("loading feedback: %v", err)), nil
			}
		}

		out := struct {
			Stats          feedback.ProfileStats    `json:"stats"`
			SlotID         string                   `json:"slot_id,omitempty"`
			AcceptedValues []string                 `json:"accepted_values,omitempty"`
			Patterns       *feedback.PatternSummary `json:"patterns,omitempty"`
		}{Stats: h.learner.Stats(profileID)}

		if slotID, err := req.RequireString("slot_id"); err == nil && slotID != "" {
			out.SlotID = slotID
			out.AcceptedValues = h.learner.AcceptedValues(profileID, slotID)
			if summary, ok := h.learner.SummarizePatterns(profileID, slotID); ok {
				out.Patterns = &summary
			}
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (h *handler) registerPatternsTool(s *server.MCPServer) {
	tool := mcp.NewTool("slotfill_patterns",
		mcp.WithDescription("List the entity types and their extraction patterns in precedence order."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("entity",
			mcp.Description("Only list patterns of this entity type"),
		),
	)

	type patternInfo struct {
		Entity model.EntityType `json:"entity"`
		Name   string           `json:"name"`
		Source string           `json:"pattern"`
	}

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		engine, err := h.engines.Load()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		lib := engine.Library()

		var only model.EntityType
		if e, err := req.RequireString("entity"); err == nil && e != "" {
			only = model.EntityType(e)
			if !lib.Has(only) {
				return mcp.NewToolResultError(fmt.Sprintf("unknown entity type %q", e)), nil
			}
		}

		out := []patternInfo{}
		for _, entity := range lib.EntityTypes() {
			if only != "" && entity != only {
				continue
			}
			for _, p := range lib.PatternsFor(entity) {
				out = append(out, patternInfo{Entity: p.Entity, Name: p.Name, Source: p.Source})
			}
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (h *handler) registerProfilePutTool(s *server.MCPServer) {
	tool := mcp.NewTool("slotfill_profile_put",
		mcp.WithDescription("Create or replace a stored profile so later fills can reference it by id."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Profile id"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Free-text profile content"),
		),
		mcp.WithString("name",
			mcp.Description("Display name"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		h.dbMu.Lock()
		defer h.dbMu.Unlock()

		id, err := req.RequireString("id")
		if err != nil || strings.TrimSpace(id) == "" {
			return mcp.NewToolResultError("id is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil || strings.TrimSpace(content) == "" {
			return mcp.NewToolResultError("profile content cannot be empty"), nil
		}
		name, _ := req.RequireString("name")

		p := &model.Profile{ID: id, Name: name, Content: content}
		changed, err := h.store.PutProfile(ctx, p)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("saving profile: %v", err)), nil
		}
		out := struct {
			Profile *model.Profile `json:"profile"`
			Changed bool           `json:"changed"`
		}{p, changed}
		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func (h *handler) registerStatsResource(s *server.MCPServer) {
	resource := mcp.NewResource(
		"slotfill://stats",
		"Store Statistics",
		mcp.WithResourceDescription("Profile and feedback counts and database size."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		h.dbMu.Lock()
		defer h.dbMu.Unlock()

		stats, err := h.store.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting stats: %w", err)
		}

		data, _ := json.MarshalIndent(stats, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
