package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"salesdesk/llm"
	"salesdesk/metrics"
	"salesdesk/models"
	"salesdesk/utils"
)

var (
	// ErrProviderNotConfigured means no model API key is set.
	ErrProviderNotConfigured = errors.New("AI provider is not configured")
	// ErrGenerationFailed covers provider errors and replies that do not decode.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrNoReports is returned when a tool needs report content and none was found.
	ErrNoReports = errors.New("no content reports found")
)

// Service runs the AI tools: it builds prompts, calls the provider, decodes
// the reply and stores successful generations.
type Service struct {
	db       *gorm.DB
	provider llm.Provider
	prompts  Prompts
	log      *logrus.Entry

	// LookupDomain resolves WHOIS facts for call prep. Replaced in tests.
	LookupDomain func(ctx context.Context, email string) (*utils.DomainFacts, error)
	Now          func() time.Time
}

func NewService(db *gorm.DB, provider llm.Provider) (*Service, error) {
	prompts, err := LoadPrompts(nil)
	if err != nil {
		return nil, err
	}
	return &Service{
		db:           db,
		provider:     provider,
		prompts:      prompts,
		log:          logrus.WithField("component", "ai"),
		LookupDomain: utils.LookupDomainFacts,
		Now:          time.Now,
	}, nil
}

// Configured reports whether a provider with credentials is available.
func (s *Service) Configured() bool {
	return s.provider != nil && s.provider.IsConfigured()
}

// SaveFunc persists records derived from a generation inside the transaction
// that stores it.
type SaveFunc[T any] func(tx *gorm.DB, gen *Generation[T]) error

// generate renders the prompt, calls the provider and decodes the reply with
// decode. Only a successful result is stored.
func generate[T any](ctx context.Context, s *Service, tool string, input any, data any, decode func(string) (T, error)) (*Generation[T], error) {
	return generateAndSave(ctx, s, tool, input, data, decode, nil)
}

// generateAndSave is generate with save run in the same transaction as the
// generated content row. Neither is kept when either write fails.
func generateAndSave[T any](ctx context.Context, s *Service, tool string, input any, data any, decode func(string) (T, error), save SaveFunc[T]) (*Generation[T], error) {
	if !s.Configured() {
		return nil, ErrProviderNotConfigured
	}

	prompt, maxTokens, err := s.prompts.Render(tool, data)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := s.provider.Generate(ctx, prompt, maxTokens)
	metrics.AIGenerationDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AIGenerations.WithLabelValues(tool, "provider_error").Inc()
		utils.LogError("ai_provider", err, map[string]interface{}{"tool": tool})
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	result, err := decode(text)
	if err != nil {
		metrics.AIGenerations.WithLabelValues(tool, "parse_error").Inc()
		utils.LogError("ai_parse", err, map[string]interface{}{"tool": tool, "response_length": len(text)})
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	gen := &Generation[T]{ContentID: uuid.NewString(), Result: result}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := store(tx, tool, gen.ContentID, input, result); err != nil {
			return err
		}
		if save != nil {
			return save(tx, gen)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AIGenerations.WithLabelValues(tool, "ok").Inc()
	s.log.WithFields(logrus.Fields{"tool": tool, "content_id": gen.ContentID}).Info("Generation stored")
	return gen, nil
}

func store(tx *gorm.DB, tool, contentID string, input, output any) error {
	in, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("encoding generation input: %w", err)
	}
	out, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encoding generation output: %w", err)
	}

	record := models.AIGeneratedContent{
		ContentID: contentID,
		Tool:      tool,
		Input:     datatypes.JSON(in),
		Output:    datatypes.JSON(out),
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("storing generated content: %w", err)
	}
	return nil
}

// decodeInto returns a decoder that parses the reply as JSON into T.
func decodeInto[T any]() func(string) (T, error) {
	return func(text string) (T, error) {
		var v T
		err := llm.DecodeJSON(text, &v)
		return v, err
	}
}
