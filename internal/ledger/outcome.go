package ledger

import "github.com/dstam/smart-import/internal/domain/entity"

// Named side effects of a save.
const (
	EffectGLPosting    = "gl_posting"
	EffectCRMMirror    = "crm_mirror"
	EffectRecurring    = "recurring_tracker"
	EffectCounterparty = "counterparty_enrichment"
)

// SideEffectStatus is the outcome of one non-fatal save side effect.
type SideEffectStatus string

const (
	EffectApplied SideEffectStatus = "applied"
	EffectSkipped SideEffectStatus = "skipped"
	EffectFailed  SideEffectStatus = "failed"
)

// SideEffectResult reports one side effect by name. Failures here never
// roll back the primary record.
type SideEffectResult struct {
	Name   string           `json:"name"`
	Status SideEffectStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

// SaveOutcome aggregates everything a save produced: the primary record,
// the counterparty it referenced or created, and the per-side-effect
// results. PartiallyFiled is true when the record exists but at least
// one side effect failed.
type SaveOutcome struct {
	Record              entity.LedgerRecord `json:"record"`
	Counterparty        *entity.Counterparty `json:"counterparty,omitempty"`
	CounterpartyCreated bool                 `json:"counterparty_created"`
	SideEffects         []SideEffectResult   `json:"side_effects,omitempty"`
	PartiallyFiled      bool                 `json:"partially_filed"`
}

func (o *SaveOutcome) addEffect(name string, status SideEffectStatus, err error) {
	effect := SideEffectResult{Name: name, Status: status}
	if err != nil {
		effect.Error = err.Error()
	}
	o.SideEffects = append(o.SideEffects, effect)
	if status == EffectFailed {
		o.PartiallyFiled = true
	}
}
