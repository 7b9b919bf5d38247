package ingest

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/siss-hmue/labflow/internal/domain/catalog"
	"github.com/siss-hmue/labflow/internal/domain/labtest"
	"github.com/siss-hmue/labflow/internal/domain/patient"
	"github.com/siss-hmue/labflow/internal/platform/ruleengine"
)

// Classifier labels a complete measurement set. Satisfied by
// ruleengine.Engine.
type Classifier interface {
	Classify(ctx context.Context, templateID string, input map[string]interface{}) (map[string]ruleengine.Verdict, error)
}

// Processor runs one uploaded file through reconciliation, completeness
// evaluation and classification. Every read and write goes through the
// caller's context, so the whole batch shares the transaction the handler
// opened.
type Processor struct {
	catalog  catalog.Repository
	patients patient.Repository
	labtests labtest.Repository
	engine   Classifier
	log      zerolog.Logger
}

func NewProcessor(cat catalog.Repository, pat patient.Repository, lab labtest.Repository, engine Classifier, log zerolog.Logger) *Processor {
	return &Processor{catalog: cat, patients: pat, labtests: lab, engine: engine, log: log}
}

// Summary reports what one batch did.
type Summary struct {
	Processed int         `json:"processed"`
	Skipped   int         `json:"skipped"`
	Completed []uuid.UUID `json:"completed"`
}

// instanceKey identifies one touched (instance, template) pair.
type instanceKey struct {
	InstanceID uuid.UUID
	TemplateID uuid.UUID
}

// batchState accumulates which instances this file wrote to. Iteration over
// touched instances follows first-touch file order.
type batchState struct {
	touched    map[instanceKey]string // value is the owning patient's HN
	order      []instanceKey
	genderDone map[instanceKey]struct{}
}

func newBatchState() *batchState {
	return &batchState{
		touched:    make(map[instanceKey]string),
		genderDone: make(map[instanceKey]struct{}),
	}
}

func (st *batchState) touch(key instanceKey, hn string) {
	if _, seen := st.touched[key]; !seen {
		st.order = append(st.order, key)
	}
	st.touched[key] = hn
}

// Process runs the pipeline over parsed rows. Row-level validation failures
// are logged and skipped; a returned error means the whole batch must roll
// back. Rows are handled strictly in file order since gender fan-out and the
// latest-pending tie-break depend on earlier writes in the same batch.
func (p *Processor) Process(ctx context.Context, rows []Row) (*Summary, error) {
	st := newBatchState()
	sum := &Summary{}

	for _, row := range rows {
		hn := row[ColHN]
		name := row[ColItemName]
		raw := row[ColItemValue]

		var (
			wrote bool
			err   error
		)
		if name == catalog.GenderTypeName {
			wrote, err = p.processGenderRow(ctx, st, hn, raw)
		} else {
			wrote, err = p.processValueRow(ctx, st, hn, name, raw)
		}
		if err != nil {
			return nil, err
		}
		if wrote {
			sum.Processed++
		} else {
			sum.Skipped++
		}
	}

	completed, err := p.finalize(ctx, st)
	if err != nil {
		return nil, err
	}
	sum.Completed = completed
	return sum, nil
}

// processGenderRow fans the normalized gender value out to every pending
// instance of the patient whose template requires the gender channel, not
// only the instance the row nominally targets.
func (p *Processor) processGenderRow(ctx context.Context, st *batchState, hn, raw string) (bool, error) {
	val, err := NormalizeGender(raw)
	if err != nil {
		p.log.Warn().Str("hn", hn).Str("value", raw).Msg("skipping row: invalid gender value")
		return false, nil
	}
	if hn == "" {
		p.log.Warn().Msg("skipping row: missing hn_number")
		return false, nil
	}

	gt, err := p.catalog.MeasurementTypeByName(ctx, catalog.GenderTypeName)
	if err != nil {
		return false, err
	}
	if gt == nil {
		p.log.Warn().Msg("skipping row: gender measurement type not registered")
		return false, nil
	}

	templateIDs, err := p.catalog.TemplatesRequiring(ctx, gt.ID)
	if err != nil {
		return false, err
	}

	wrote := false
	for _, templateID := range templateIDs {
		ti, err := p.labtests.LatestPending(ctx, hn, templateID)
		if err != nil {
			return false, err
		}
		if ti == nil {
			continue
		}
		key := instanceKey{InstanceID: ti.ID, TemplateID: templateID}
		if _, done := st.genderDone[key]; done {
			continue
		}
		if err := p.labtests.UpsertResult(ctx, ti.ID, gt.ID, val); err != nil {
			return false, err
		}
		st.genderDone[key] = struct{}{}
		st.touch(key, hn)
		wrote = true
	}
	if !wrote {
		p.log.Warn().Str("hn", hn).Msg("skipping row: no pending test expects gender")
	}
	return wrote, nil
}

func (p *Processor) processValueRow(ctx context.Context, st *batchState, hn, name, raw string) (bool, error) {
	value, parseErr := strconv.ParseFloat(raw, 64)
	if hn == "" || name == "" || parseErr != nil {
		p.log.Warn().Str("hn", hn).Str("item", name).Str("value", raw).
			Msg("skipping row: invalid data")
		return false, nil
	}

	mt, err := p.catalog.MeasurementTypeByName(ctx, name)
	if err != nil {
		return false, err
	}
	if mt == nil {
		p.log.Warn().Str("item", name).Msg("skipping row: unknown measurement")
		return false, nil
	}

	templateIDs, err := p.catalog.TemplatesRequiring(ctx, mt.ID)
	if err != nil {
		return false, err
	}
	if len(templateIDs) == 0 {
		p.log.Warn().Str("item", name).Msg("skipping row: no template requires this measurement")
		return false, nil
	}

	wrote := false
	for _, templateID := range templateIDs {
		ti, err := p.labtests.LatestPending(ctx, hn, templateID)
		if err != nil {
			return false, err
		}
		if ti == nil {
			continue
		}

		required, err := p.catalog.TemplateRequires(ctx, templateID, mt.ID)
		if err != nil {
			return false, err
		}
		if !required {
			p.log.Warn().Str("item", name).Str("template_id", templateID.String()).
				Msg("skipping write: measurement not in template's required set")
			continue
		}

		if err := p.labtests.UpsertResult(ctx, ti.ID, mt.ID, value); err != nil {
			return false, err
		}
		st.touch(instanceKey{InstanceID: ti.ID, TemplateID: templateID}, hn)
		wrote = true
	}
	if !wrote {
		p.log.Warn().Str("hn", hn).Str("item", name).Msg("skipping row: no open test for patient")
	}
	return wrote, nil
}

// finalize evaluates completeness for every instance the batch touched and
// classifies the complete ones. An engine failure is returned to the caller
// and aborts the enclosing transaction for the whole file.
func (p *Processor) finalize(ctx context.Context, st *batchState) ([]uuid.UUID, error) {
	var completed []uuid.UUID
	for _, key := range st.order {
		requiredIDs, err := p.catalog.RequiredTypeIDs(ctx, key.TemplateID)
		if err != nil {
			return nil, err
		}
		presentIDs, err := p.labtests.TypesPresent(ctx, key.InstanceID)
		if err != nil {
			return nil, err
		}
		if !covers(presentIDs, requiredIDs) {
			p.log.Debug().Str("test_instance_id", key.InstanceID.String()).
				Msg("instance incomplete, staying pending")
			continue
		}

		if err := p.classify(ctx, key); err != nil {
			return nil, err
		}
		if err := p.labtests.MarkCompleted(ctx, key.InstanceID); err != nil {
			return nil, err
		}
		if err := p.patients.SetLabDataFlag(ctx, st.touched[key], true); err != nil {
			return nil, err
		}
		completed = append(completed, key.InstanceID)
	}
	return completed, nil
}

// classify feeds the instance's full measurement set to the engine and
// writes each returned label back, skipping the gender channel which has no
// high/low notion.
func (p *Processor) classify(ctx context.Context, key instanceKey) error {
	results, err := p.labtests.ResultsNamed(ctx, key.InstanceID)
	if err != nil {
		return err
	}

	input := make(map[string]interface{}, len(results))
	for _, nr := range results {
		if nr.Name == catalog.GenderTypeName {
			input[nr.Name] = GenderLiteral(nr.Value)
		} else {
			input[nr.Name] = nr.Value
		}
	}

	verdicts, err := p.engine.Classify(ctx, key.TemplateID.String(), input)
	if err != nil {
		return fmt.Errorf("classifying instance %s: %w", key.InstanceID, err)
	}

	for _, nr := range results {
		if nr.Name == catalog.GenderTypeName {
			continue
		}
		status := ruleengine.StatusFor(verdicts, nr.Name)
		if err := p.labtests.SetResultStatus(ctx, key.InstanceID, nr.TypeID, status); err != nil {
			return err
		}
	}
	return nil
}

// covers reports whether present includes every required ID.
func covers(present, required []uuid.UUID) bool {
	set := make(map[uuid.UUID]struct{}, len(present))
	for _, id := range present {
		set[id] = struct{}{}
	}
	for _, id := range required {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
