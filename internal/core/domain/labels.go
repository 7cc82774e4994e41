package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultPointLabel is shown for a point that has no usable name.
const DefaultPointLabel = "Point de prélèvement"

// DisplayName returns Nom, else AutresNoms, else "".
func (p *PointPrelevement) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Nom != "" {
		return p.Nom
	}
	return p.AutresNoms
}

// PointLabel returns the display name of p, or fallback when it has none.
// An empty fallback means DefaultPointLabel.
func PointLabel(p *PointPrelevement, fallback string) string {
	if name := p.DisplayName(); name != "" {
		return name
	}
	if fallback == "" {
		return DefaultPointLabel
	}
	return fallback
}

// NormalizePointID turns the ids found in upstream payloads (strings, JSON
// numbers, integers) into one string form. nil and "" yield false.
func NormalizePointID(id any) (string, bool) {
	switch v := id.(type) {
	case nil:
		return "", false
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case *string:
		if v == nil || *v == "" {
			return "", false
		}
		return *v, true
	case json.Number:
		if v == "" {
			return "", false
		}
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return fmt.Sprint(v), true
	}
}

// DisplayName derives the name shown for a preleveur: sigle, then raison
// sociale, then "civilite nom prenom". It reports false when none is set.
func (p *Preleveur) DisplayName() (string, bool) {
	if p == nil {
		return "", false
	}
	if p.Sigle != "" {
		return p.Sigle, true
	}
	if p.RaisonSociale != "" {
		return p.RaisonSociale, true
	}
	if p.Nom != "" {
		parts := make([]string, 0, 3)
		for _, s := range []string{p.Civilite, p.Nom, p.Prenom} {
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " "), true
	}
	return "", false
}
