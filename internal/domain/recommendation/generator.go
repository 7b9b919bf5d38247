package recommendation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TextGenerator produces the narrative text for a rendered prompt.
// Satisfied by narrative.Client.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Generator turns completed test instances into pending recommendations.
type Generator struct {
	repo Repository
	gen  TextGenerator
	log  zerolog.Logger
}

func NewGenerator(repo Repository, gen TextGenerator, log zerolog.Logger) *Generator {
	return &Generator{repo: repo, gen: gen, log: log}
}

// GenerateForInstances runs after the ingestion transaction has committed.
// Each instance is handled independently: a failure is logged and the loop
// moves on, so one bad narrative call cannot block the others. Returns the
// number of recommendations written.
func (g *Generator) GenerateForInstances(ctx context.Context, instanceIDs []uuid.UUID) int {
	generated := 0
	for _, id := range instanceIDs {
		if err := g.GenerateOne(ctx, id); err != nil {
			g.log.Error().Err(err).Str("test_instance_id", id.String()).
				Msg("recommendation generation failed")
			continue
		}
		generated++
	}
	return generated
}

// GenerateOne fetches the classified results for one instance, renders the
// prompt, calls the narrative service and stores the result as pending.
func (g *Generator) GenerateOne(ctx context.Context, instanceID uuid.UUID) error {
	summary, err := g.repo.InstanceSummary(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("loading instance summary: %w", err)
	}
	if summary == nil || len(summary.Items) == 0 {
		return fmt.Errorf("no measurement results for instance %s", instanceID)
	}

	prompt := BuildPrompt(summary.PatientName, summary.Items)
	text, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generating narrative: %w", err)
	}

	return g.repo.Create(ctx, &Recommendation{
		TestInstanceID: instanceID,
		DoctorID:       summary.DoctorID,
		GeneratedText:  text,
		Status:         StatusPending,
	})
}
