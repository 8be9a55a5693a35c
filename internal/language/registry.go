// Package language holds the language table shared by retrieval, recognition and synthesis.
package language

import (
	"sort"
	"strings"

	"wikimind/internal/common/config"
	"wikimind/internal/models"
)

// Registry is a read-only lookup over the configured language profiles.
type Registry struct {
	profiles []models.LanguageProfile
	byCode   map[string]models.LanguageProfile
}

func NewRegistry(rows []config.LanguageConfig) *Registry {
	r := &Registry{byCode: make(map[string]models.LanguageProfile, len(rows))}
	for _, row := range rows {
		p := models.LanguageProfile{
			DisplayName:   row.DisplayName,
			RetrievalCode: strings.ToLower(strings.TrimSpace(row.RetrievalCode)),
			SpeechCode:    strings.TrimSpace(row.SpeechCode),
			PollyVoice:    strings.TrimSpace(row.PollyVoice),
		}
		if p.RetrievalCode == "" {
			continue
		}
		if p.DisplayName == "" {
			p.DisplayName = p.RetrievalCode
		}
		if _, dup := r.byCode[p.RetrievalCode]; dup {
			continue
		}
		r.byCode[p.RetrievalCode] = p
		r.profiles = append(r.profiles, p)
	}
	return r
}

// Lookup finds a profile by retrieval code, case-insensitively.
func (r *Registry) Lookup(code string) (models.LanguageProfile, bool) {
	p, ok := r.byCode[strings.ToLower(strings.TrimSpace(code))]
	return p, ok
}

// ByDisplayName finds a profile by its human-readable name.
func (r *Registry) ByDisplayName(name string) (models.LanguageProfile, bool) {
	for _, p := range r.profiles {
		if strings.EqualFold(p.DisplayName, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return models.LanguageProfile{}, false
}

// All returns the profiles in table order.
func (r *Registry) All() []models.LanguageProfile {
	out := make([]models.LanguageProfile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Codes returns the sorted retrieval codes.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.byCode))
	for code := range r.byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
