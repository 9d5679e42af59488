package commands

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/benvon/smart-autotrader/internal/services/extraction"
	"github.com/google/uuid"
)

type mockExtractor struct {
	extractFunc func(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error)
}

func (m *mockExtractor) ExtractParameters(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error) {
	return m.extractFunc(ctx, req)
}

func ptr[T any](v T) *T { return &v }

func TestDryRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		result    models.ExtractionResult
		err       error
		expectErr bool
		contains  []string
		absent    []string
	}{
		{
			name: "criteria are reconciled and decided",
			result: models.ExtractionResult{
				Intent: models.IntentNewQuery,
				Criteria: models.Criteria{
					MaxPrice:     ptr(20000.0),
					VehicleTypes: []models.VehicleType{models.VehicleTypeSUV},
				},
				Negated: models.Rejections{Makes: []string{"Ford"}},
			},
			contains: []string{
				"Intent: new_query",
				"Extracted: price ≤ 20000; types SUV",
				"Negated: makes Ford",
				"Reconciled: price ≤ 20000; types SUV",
				"Decision: ",
			},
		},
		{
			name:     "off topic stops early",
			result:   models.ExtractionResult{IsOffTopic: true, OffTopicResponse: "Cars only."},
			contains: []string{`off topic ("Cars only.")`},
			absent:   []string{"Decision:"},
		},
		{
			name:     "degraded stops early",
			result:   models.DegradedResult("???"),
			contains: []string{"degraded"},
			absent:   []string{"Decision:"},
		},
		{
			name:      "extractor failure",
			err:       errors.New("connection refused"),
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var forced string
			ex := &mockExtractor{extractFunc: func(_ context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error) {
				forced = req.ForceModel
				return tt.result, tt.err
			}}

			var out bytes.Buffer
			err := dryRun(context.Background(), &out, ex, "fast", "cheap suv, no ford")
			if (err != nil) != tt.expectErr {
				t.Fatalf("Expected error %v, got %v", tt.expectErr, err)
			}
			if forced != "fast" {
				t.Errorf("Expected forced model label 'fast', got %q", forced)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out.String(), want) {
					t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
				}
			}
			for _, unwanted := range tt.absent {
				if strings.Contains(out.String(), unwanted) {
					t.Errorf("Expected output without %q, got:\n%s", unwanted, out.String())
				}
			}
		})
	}
}

func TestPrintContext(t *testing.T) {
	t.Parallel()

	cc := &models.ConversationContext{
		SessionID:    uuid.MustParse("7b0c1f1e-4a55-4c3e-9d59-2f8f7a0b1c2d"),
		MessageCount: 3,
		CurrentParameters: models.Criteria{
			MinYear:      ptr(2018),
			MaxYear:      ptr(2022),
			Transmission: ptr(models.TransmissionAutomatic),
		},
		Rejected:              models.Rejections{FuelTypes: []models.FuelType{models.FuelTypeDiesel}},
		PendingClarification:  []models.Field{models.FieldPrice},
		LastQuestionAskedByAI: "What's your budget?",
		ShownItemIDs:          []int64{4, 9},
		LastInteraction:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	var out bytes.Buffer
	printContext(&out, cc)

	for _, want := range []string{
		"Session: 7b0c1f1e-4a55-4c3e-9d59-2f8f7a0b1c2d",
		"Messages: 3",
		"Parameters: year 2018-2022; transmission Automatic",
		"Rejected: fuel Diesel",
		"Waiting on: price",
		"Last question: What's your budget?",
		"Vehicles shown: 2",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
		}
	}

	out.Reset()
	printContext(&out, &models.ConversationContext{})
	if !strings.Contains(out.String(), "Parameters: (none)") || !strings.Contains(out.String(), "Rejected: (none)") {
		t.Errorf("Expected empty summaries, got:\n%s", out.String())
	}
}

func TestPrintHistory(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printHistory(&out, nil)
	if strings.TrimSpace(out.String()) != "No chat history" {
		t.Errorf("Expected empty notice, got %q", out.String())
	}

	out.Reset()
	printHistory(&out, []*models.ChatTurn{{
		SessionID:        uuid.New(),
		UserMessage:      "cheap suv",
		AssistantMessage: "Here are 2 vehicles.",
		Outcome:          models.OutcomeResults,
		ShownVehicleIDs:  []int64{1, 2},
		CreatedAt:        time.Now(),
	}})
	for _, want := range []string{"[results]", "user: cheap suv", "assistant: Here are 2 vehicles.", "vehicles: [1 2]"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
		}
	}
}
