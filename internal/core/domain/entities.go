package domain

import (
	"time"
)

// PointPrelevement is a physical water-withdrawal point.
type PointPrelevement struct {
	ID         string    `json:"id"`
	Nom        string    `json:"nom,omitempty"`
	AutresNoms string    `json:"autresNoms,omitempty"`
	TypeMilieu string    `json:"typeMilieu,omitempty"`
	Usages     []string  `json:"usages,omitempty"`
	Location   *GeoPoint `json:"coordinates,omitempty"`
	Statut     string    `json:"statut,omitempty"`
	// Authorised withdrawal window, "HH:MM".
	HeureDebut   string    `json:"heureDebut,omitempty"`
	HeureFin     string    `json:"heureFin,omitempty"`
	Commune      *Commune  `json:"commune,omitempty"`
	PreleveurIDs []string  `json:"preleveurs,omitempty"`
	Distance     *float64  `json:"distance,omitempty"` // computed field
	UpdatedAt    time.Time `json:"updated_at"`
}

// Preleveur is the person or legal entity responsible for withdrawal points.
type Preleveur struct {
	ID            string    `json:"id"`
	Sigle         string    `json:"sigle,omitempty"`
	RaisonSociale string    `json:"raison_sociale,omitempty"`
	Civilite      string    `json:"civilite,omitempty"`
	Nom           string    `json:"nom,omitempty"`
	Prenom        string    `json:"prenom,omitempty"`
	Email         string    `json:"email,omitempty"`
	Telephone     string    `json:"telephone,omitempty"`
	PointIDs      []string  `json:"points,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Commune is a French municipality resolved from coordinates.
type Commune struct {
	Nom  string `json:"nom"`
	Code string `json:"code"`
}

// PointSummary is the list/map projection of a point.
type PointSummary struct {
	ID         string      `json:"id"`
	Label      string      `json:"label"`
	TypeMilieu string      `json:"typeMilieu,omitempty"`
	Color      string      `json:"color,omitempty"`
	Usages     []UsageChip `json:"usages,omitempty"`
	Location   *GeoPoint   `json:"coordinates,omitempty"`
	Statut     string      `json:"statut,omitempty"`
}

// UsageChip is a usage with its display colours.
type UsageChip struct {
	Usage string `json:"usage"`
	UsageColors
}

// Summarize projects p for list and map rendering.
func Summarize(p PointPrelevement) PointSummary {
	s := PointSummary{
		ID:         p.ID,
		Label:      PointLabel(&p, ""),
		TypeMilieu: p.TypeMilieu,
		Location:   p.Location,
		Statut:     p.Statut,
	}
	if c, ok := TypeMilieuColor(p.TypeMilieu); ok {
		s.Color = c
	}
	for _, u := range p.Usages {
		s.Usages = append(s.Usages, UsageChip{Usage: u, UsageColors: UsageColor(u)})
	}
	return s
}

// PreleveurView is a preleveur with its derived display name.
type PreleveurView struct {
	Preleveur
	DisplayName *string `json:"display_name"`
}

// ViewPreleveur attaches the display name; nil when none can be derived.
func ViewPreleveur(p Preleveur) PreleveurView {
	v := PreleveurView{Preleveur: p}
	if name, ok := p.DisplayName(); ok {
		v.DisplayName = &name
	}
	return v
}

// SelectionChanged is emitted whenever a session's selected point changes.
type SelectionChanged struct {
	SessionID string    `json:"session_id"`
	PointID   string    `json:"point_id,omitempty"` // empty when deselected
	Version   uint64    `json:"version"`
	Time      time.Time `json:"time"`
}
