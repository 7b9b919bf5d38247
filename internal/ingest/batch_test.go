package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/siss-hmue/labflow/internal/domain/catalog"
	"github.com/siss-hmue/labflow/internal/domain/labtest"
	"github.com/siss-hmue/labflow/internal/domain/patient"
	"github.com/siss-hmue/labflow/internal/platform/ruleengine"
)

// ---------- in-memory repositories ----------

type memCatalog struct {
	templates map[uuid.UUID]*catalog.TestTemplate
	types     map[string]*catalog.MeasurementType
	required  map[uuid.UUID][]uuid.UUID
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		templates: make(map[uuid.UUID]*catalog.TestTemplate),
		types:     make(map[string]*catalog.MeasurementType),
		required:  make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *memCatalog) addType(name string) *catalog.MeasurementType {
	mt := &catalog.MeasurementType{ID: uuid.New(), Name: name}
	m.types[name] = mt
	return mt
}

func (m *memCatalog) addTemplate(name string, typeIDs ...uuid.UUID) *catalog.TestTemplate {
	t := &catalog.TestTemplate{ID: uuid.New(), Name: name}
	m.templates[t.ID] = t
	m.required[t.ID] = typeIDs
	return t
}

func (m *memCatalog) GetTemplate(_ context.Context, id uuid.UUID) (*catalog.TestTemplate, error) {
	return m.templates[id], nil
}

func (m *memCatalog) TemplateByName(_ context.Context, name string) (*catalog.TestTemplate, error) {
	for _, t := range m.templates {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, nil
}

func (m *memCatalog) MeasurementTypeByName(_ context.Context, name string) (*catalog.MeasurementType, error) {
	return m.types[name], nil
}

func (m *memCatalog) RequiredTypes(_ context.Context, templateID uuid.UUID) ([]*catalog.MeasurementType, error) {
	var out []*catalog.MeasurementType
	for _, id := range m.required[templateID] {
		for _, mt := range m.types {
			if mt.ID == id {
				out = append(out, mt)
			}
		}
	}
	return out, nil
}

func (m *memCatalog) RequiredTypeIDs(_ context.Context, templateID uuid.UUID) ([]uuid.UUID, error) {
	return m.required[templateID], nil
}

func (m *memCatalog) TemplateRequires(_ context.Context, templateID, typeID uuid.UUID) (bool, error) {
	for _, id := range m.required[templateID] {
		if id == typeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCatalog) TemplatesRequiring(_ context.Context, typeID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for tplID, ids := range m.required {
		for _, id := range ids {
			if id == typeID {
				out = append(out, tplID)
			}
		}
	}
	return out, nil
}

type memPatients struct {
	patients map[string]*patient.Patient
}

func newMemPatients() *memPatients {
	return &memPatients{patients: make(map[string]*patient.Patient)}
}

func (m *memPatients) GetByHN(_ context.Context, hn string) (*patient.Patient, error) {
	return m.patients[hn], nil
}

func (m *memPatients) ExistsByHN(_ context.Context, hn string) (bool, error) {
	_, ok := m.patients[hn]
	return ok, nil
}

func (m *memPatients) HNByCitizenID(_ context.Context, citizenID string) (string, error) {
	for hn, p := range m.patients {
		if p.CitizenID == citizenID {
			return hn, nil
		}
	}
	return "", nil
}

func (m *memPatients) Create(_ context.Context, p *patient.Patient) error {
	m.patients[p.HN] = p
	return nil
}

func (m *memPatients) SetLabDataFlag(_ context.Context, hn string, ready bool) error {
	if p, ok := m.patients[hn]; ok {
		p.LabDataStatus = ready
	}
	return nil
}

type resultCell struct {
	value  float64
	status *string
}

type memLabtests struct {
	instances map[uuid.UUID]*labtest.TestInstance
	results   map[uuid.UUID]map[uuid.UUID]*resultCell
	typeNames map[uuid.UUID]string
}

func newMemLabtests(cat *memCatalog) *memLabtests {
	names := make(map[uuid.UUID]string)
	for _, mt := range cat.types {
		names[mt.ID] = mt.Name
	}
	return &memLabtests{
		instances: make(map[uuid.UUID]*labtest.TestInstance),
		results:   make(map[uuid.UUID]map[uuid.UUID]*resultCell),
		typeNames: names,
	}
}

func (m *memLabtests) CreateInstance(_ context.Context, ti *labtest.TestInstance) error {
	if ti.ID == uuid.Nil {
		ti.ID = uuid.New()
	}
	if ti.Status == "" {
		ti.Status = labtest.StatusPending
	}
	m.instances[ti.ID] = ti
	return nil
}

func (m *memLabtests) GetInstance(_ context.Context, id uuid.UUID) (*labtest.TestInstance, error) {
	return m.instances[id], nil
}

func (m *memLabtests) LatestPending(_ context.Context, hn string, templateID uuid.UUID) (*labtest.TestInstance, error) {
	var latest *labtest.TestInstance
	for _, ti := range m.instances {
		if ti.HN != hn || ti.TemplateID != templateID || ti.Status != labtest.StatusPending {
			continue
		}
		if latest == nil || ti.CollectedAt.After(latest.CollectedAt) {
			latest = ti
		}
	}
	return latest, nil
}

func (m *memLabtests) MarkCompleted(_ context.Context, instanceID uuid.UUID) error {
	m.instances[instanceID].Status = labtest.StatusCompleted
	return nil
}

func (m *memLabtests) UpsertResult(_ context.Context, instanceID, typeID uuid.UUID, value float64) error {
	cells, ok := m.results[instanceID]
	if !ok {
		cells = make(map[uuid.UUID]*resultCell)
		m.results[instanceID] = cells
	}
	if cell, ok := cells[typeID]; ok {
		cell.value = value
		return nil
	}
	cells[typeID] = &resultCell{value: value}
	return nil
}

func (m *memLabtests) TypesPresent(_ context.Context, instanceID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id := range m.results[instanceID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memLabtests) ResultsNamed(_ context.Context, instanceID uuid.UUID) ([]labtest.NamedResult, error) {
	var out []labtest.NamedResult
	for typeID, cell := range m.results[instanceID] {
		out = append(out, labtest.NamedResult{TypeID: typeID, Name: m.typeNames[typeID], Value: cell.value})
	}
	return out, nil
}

func (m *memLabtests) SetResultStatus(_ context.Context, instanceID, typeID uuid.UUID, status string) error {
	if cell, ok := m.results[instanceID][typeID]; ok {
		s := status
		cell.status = &s
	}
	return nil
}

type engineCall struct {
	templateID string
	input      map[string]interface{}
}

type mockEngine struct {
	verdicts map[string]ruleengine.Verdict
	err      error
	calls    []engineCall
}

func (m *mockEngine) Classify(_ context.Context, templateID string, input map[string]interface{}) (map[string]ruleengine.Verdict, error) {
	m.calls = append(m.calls, engineCall{templateID: templateID, input: input})
	if m.err != nil {
		return nil, m.err
	}
	return m.verdicts, nil
}

// ---------- fixture ----------

type fixture struct {
	cat      *memCatalog
	patients *memPatients
	labtests *memLabtests
	engine   *mockEngine

	gender   *catalog.MeasurementType
	glucose  *catalog.MeasurementType
	template *catalog.TestTemplate
	instance *labtest.TestInstance
}

// newFixture registers one patient with one pending instance under a
// template requiring {Gender, Glucose}.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := newMemCatalog()
	gender := cat.addType(catalog.GenderTypeName)
	glucose := cat.addType("Glucose")
	tpl := cat.addTemplate("Basic Panel", gender.ID, glucose.ID)

	patients := newMemPatients()
	patients.Create(context.Background(), &patient.Patient{HN: "000000001", Name: "Somchai P."})

	labtests := newMemLabtests(cat)
	instance := &labtest.TestInstance{
		HN:          "000000001",
		TemplateID:  tpl.ID,
		CollectedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	labtests.CreateInstance(context.Background(), instance)

	return &fixture{
		cat:      cat,
		patients: patients,
		labtests: labtests,
		engine: &mockEngine{verdicts: map[string]ruleengine.Verdict{
			"glucose": {Classification: "normal"},
		}},
		gender:   gender,
		glucose:  glucose,
		template: tpl,
		instance: instance,
	}
}

func (f *fixture) processor() *Processor {
	return NewProcessor(f.cat, f.patients, f.labtests, f.engine, zerolog.Nop())
}

func row(hn, item, value string) Row {
	return Row{ColHN: hn, ColItemName: item, ColItemValue: value}
}

// ---------- tests ----------

func TestProcess_EndToEnd(t *testing.T) {
	f := newFixture(t)
	summary, err := f.processor().Process(context.Background(), []Row{
		row("000000001", "Gender", "F"),
		row("000000001", "Glucose", "95"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Processed != 2 || summary.Skipped != 0 {
		t.Errorf("processed=%d skipped=%d, want 2/0", summary.Processed, summary.Skipped)
	}
	if len(summary.Completed) != 1 || summary.Completed[0] != f.instance.ID {
		t.Fatalf("completed = %v, want [%s]", summary.Completed, f.instance.ID)
	}
	if f.instance.Status != labtest.StatusCompleted {
		t.Errorf("instance status = %q, want completed", f.instance.Status)
	}

	if len(f.engine.calls) != 1 {
		t.Fatalf("engine called %d times, want 1", len(f.engine.calls))
	}
	call := f.engine.calls[0]
	if call.templateID != f.template.ID.String() {
		t.Errorf("engine template = %q", call.templateID)
	}
	if call.input["Gender"] != "F" {
		t.Errorf("engine gender input = %v, want F", call.input["Gender"])
	}
	if call.input["Glucose"] != 95.0 {
		t.Errorf("engine glucose input = %v, want 95", call.input["Glucose"])
	}

	cells := f.labtests.results[f.instance.ID]
	if len(cells) != 2 {
		t.Fatalf("got %d results, want 2", len(cells))
	}
	glucoseCell := cells[f.glucose.ID]
	if glucoseCell.status == nil || *glucoseCell.status != "normal" {
		t.Errorf("glucose status = %v, want normal", glucoseCell.status)
	}
	if genderCell := cells[f.gender.ID]; genderCell.status != nil {
		t.Errorf("gender status should stay nil, got %q", *genderCell.status)
	}
	if !f.patients.patients["000000001"].LabDataStatus {
		t.Error("patient lab data flag not set")
	}
}

func TestProcess_UnknownMeasurementSkipsOnlyThatRow(t *testing.T) {
	f := newFixture(t)
	summary, err := f.processor().Process(context.Background(), []Row{
		row("000000001", "Chakra Level", "9000"),
		row("000000001", "Glucose", "95"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Skipped != 1 || summary.Processed != 1 {
		t.Errorf("processed=%d skipped=%d, want 1/1", summary.Processed, summary.Skipped)
	}
	if _, ok := f.labtests.results[f.instance.ID][f.glucose.ID]; !ok {
		t.Error("valid glucose row should still be persisted")
	}
}

func TestProcess_InvalidGenderSkipsRowOnly(t *testing.T) {
	f := newFixture(t)
	summary, err := f.processor().Process(context.Background(), []Row{
		row("000000001", "Gender", "X"),
		row("000000001", "Glucose", "95"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Skipped != 1 || summary.Processed != 1 {
		t.Errorf("processed=%d skipped=%d, want 1/1", summary.Processed, summary.Skipped)
	}
	if _, ok := f.labtests.results[f.instance.ID][f.gender.ID]; ok {
		t.Error("invalid gender value should not be written")
	}
}

func TestProcess_NonNumericValueSkipsRow(t *testing.T) {
	f := newFixture(t)
	summary, err := f.processor().Process(context.Background(), []Row{
		row("000000001", "Glucose", "ninety-five"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", summary.Skipped)
	}
}

func TestProcess_NoOpenTestSkipsRow(t *testing.T) {
	f := newFixture(t)
	summary, err := f.processor().Process(context.Background(), []Row{
		row("999999999", "Glucose", "95"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Skipped != 1 || summary.Processed != 0 {
		t.Errorf("processed=%d skipped=%d, want 0/1", summary.Processed, summary.Skipped)
	}
}

func TestProcess_UpsertKeepsSingleRow(t *testing.T) {
	f := newFixture(t)
	_, err := f.processor().Process(context.Background(), []Row{
		row("000000001", "Glucose", "95"),
		row("000000001", "Glucose", "101"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cells := f.labtests.results[f.instance.ID]
	if len(cells) != 1 {
		t.Fatalf("got %d result rows, want 1", len(cells))
	}
	if cells[f.glucose.ID].value != 101 {
		t.Errorf("value = %v, want latest value 101", cells[f.glucose.ID].value)
	}
}

func TestProcess_PartialSetStaysPending(t *testing.T) {
	f := newFixture(t)
	summary, err := f.processor().Process(context.Background(), []Row{
		row("000000001", "Glucose", "95"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.Completed) != 0 {
		t.Errorf("nothing should complete, got %v", summary.Completed)
	}
	if f.instance.Status != labtest.StatusPending {
		t.Errorf("instance status = %q, want pending", f.instance.Status)
	}
	if len(f.engine.calls) != 0 {
		t.Errorf("engine should not be invoked for incomplete instance")
	}
}

func TestProcess_GenderFanOut(t *testing.T) {
	f := newFixture(t)
	// Second template also requires gender; the patient has a pending
	// instance for it too.
	hdl := f.cat.addType("HDL")
	tpl2 := f.cat.addTemplate("Lipid Panel", f.gender.ID, hdl.ID)
	f.labtests.typeNames[hdl.ID] = hdl.Name
	inst2 := &labtest.TestInstance{
		HN:          "000000001",
		TemplateID:  tpl2.ID,
		CollectedAt: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}
	f.labtests.CreateInstance(context.Background(), inst2)

	_, err := f.processor().Process(context.Background(), []Row{
		row("000000001", "Gender", "M"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := f.labtests.results[f.instance.ID][f.gender.ID]; !ok {
		t.Error("gender not written to first template's instance")
	}
	if _, ok := f.labtests.results[inst2.ID][f.gender.ID]; !ok {
		t.Error("gender not fanned out to second template's instance")
	}
}

func TestProcess_LatestPendingWins(t *testing.T) {
	f := newFixture(t)
	older := &labtest.TestInstance{
		HN:          "000000001",
		TemplateID:  f.template.ID,
		CollectedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.labtests.CreateInstance(context.Background(), older)

	_, err := f.processor().Process(context.Background(), []Row{
		row("000000001", "Glucose", "95"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.labtests.results[f.instance.ID][f.glucose.ID]; !ok {
		t.Error("most recently dated pending instance should receive the value")
	}
	if _, ok := f.labtests.results[older.ID][f.glucose.ID]; ok {
		t.Error("older pending instance should not receive the value")
	}
}

func TestProcess_EngineFailureAbortsBatch(t *testing.T) {
	f := newFixture(t)
	f.engine.err = errors.New("rule set missing")

	_, err := f.processor().Process(context.Background(), []Row{
		row("000000001", "Gender", "F"),
		row("000000001", "Glucose", "95"),
	})
	if err == nil {
		t.Fatal("engine failure must propagate so the transaction rolls back")
	}
	if f.instance.Status == labtest.StatusCompleted {
		t.Error("instance must not be marked completed after engine failure")
	}
}

func TestProcess_UnmatchedEngineKeyGetsUnknown(t *testing.T) {
	f := newFixture(t)
	f.engine.verdicts = map[string]ruleengine.Verdict{
		"something_else": {Classification: "high"},
	}

	_, err := f.processor().Process(context.Background(), []Row{
		row("000000001", "Gender", "F"),
		row("000000001", "Glucose", "95"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cell := f.labtests.results[f.instance.ID][f.glucose.ID]
	if cell.status == nil || *cell.status != ruleengine.UnknownStatus {
		t.Errorf("status = %v, want unknown sentinel", cell.status)
	}
}
