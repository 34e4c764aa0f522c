// Package modelstore keeps the table of known model profiles and resolves model artifact
// locations into predictors.
package modelstore

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// Built-in profile ids.
const (
	SidaguriDuha    = "sidaguri_duha"
	KejibelingSirih = "kejibeling_sirih"
)

// DefaultModelID is selected when nothing else is asked for.
const DefaultModelID = SidaguriDuha

// BuiltinProfiles returns the two classification tasks shipped with the application.
func BuiltinProfiles() []types.ModelProfile {
	return []types.ModelProfile{
		{
			ID:                 SidaguriDuha,
			Name:               "Sidaguri - Duha",
			ClassifierLocation: "https://blob.kodesiana.com/kodesiana-ai-public/models/lc-sidaguri/js_lcms_classif_sidaguri_duha/model.json",
			Mean:               30488685.23260185,
			Std:                78338321.0455869,
			ClassMap: map[int]string{
				0: "Campuran 5%",
				1: "Campuran 25%",
				2: "Campuran 50%",
				3: "Sidaguri",
				4: "Duha",
			},
			AdulteratedClass: 0,
			Policy:           types.PolicyV1,
		},
		{
			ID:                 KejibelingSirih,
			Name:               "Keji Beling - Sirih",
			ClassifierLocation: "https://blob.kodesiana.com/kodesiana-ai-public/models/lc-sidaguri/js_lcms_classif_kejibeling_sirih/model.json",
			Mean:               43877836.5496915,
			Std:                104778972.11904727,
			ClassMap: map[int]string{
				0: "Campuran 5%",
				1: "Campuran 25%",
				2: "Campuran 50%",
				3: "Keji Beling",
				4: "Sirih Hutan",
			},
			AdulteratedClass: 0,
			Policy:           types.PolicyV1,
		},
	}
}

// Registry is a concurrency-safe table of model profiles keyed by id.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]types.ModelProfile
}

// NewRegistry returns a registry holding the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]types.ModelProfile)}
	for _, p := range BuiltinProfiles() {
		r.profiles[p.ID] = p
	}
	return r
}

// Get returns the profile with id.
func (r *Registry) Get(id string) (types.ModelProfile, error) {
	r.mu.RLock()
	p, ok := r.profiles[id]
	r.mu.RUnlock()
	if !ok {
		return types.ModelProfile{}, types.NewInputError("modelstore.get", fmt.Errorf("%w: %q", types.ErrUnknownModel, id))
	}
	return p, nil
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Profiles returns every registered profile ordered by id.
func (r *Registry) Profiles() []types.ModelProfile {
	ids := r.IDs()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ModelProfile, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.profiles[id])
	}
	return out
}

// Register validates p and adds it, replacing any profile with the same id.
func (r *Registry) Register(p types.ModelProfile) error {
	if p.Policy.Name == "" {
		p.Policy = types.PolicyV1
	}
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.profiles[p.ID] = p
	r.mu.Unlock()
	return nil
}

// LoadProfiles reads a JSON array of profiles from rd and registers each. Policies may be
// given by name ("v1"/"v2") through the policy.name field; omitted fields take that
// policy's defaults.
func (r *Registry) LoadProfiles(rd io.Reader) (int, error) {
	profiles, err := codec.NewJSONDecoder[types.ModelProfile]().DecodeSlice(rd)
	if err != nil {
		return 0, types.NewInputError("modelstore.load_profiles", fmt.Errorf("%w: %v", types.ErrInvalidProfile, err))
	}
	for i, p := range profiles {
		if p.Policy.Name != "" && p.Policy.ProbabilityDecimals == 0 {
			if named, ok := types.PolicyByName(p.Policy.Name); ok {
				p.Policy = named
			}
		}
		if err := r.Register(p); err != nil {
			return i, err
		}
	}
	return len(profiles), nil
}
