// Package eventDescription resolves content hashes to event descriptions,
// fetching them from content addressed storage the first time a hash is seen.
package eventDescription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Description is the document stored under an event description hash.
type Description struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ResolutionDate time.Time `json:"resolutionDate"`
	Outcomes       []string  `json:"outcomes,omitempty"`
	Unit           string    `json:"unit,omitempty"`
	Decimals       *int      `json:"decimals,omitempty"`
}

// UnmarshalJSON accepts the resolution date as RFC 3339 text or unix seconds.
func (d *Description) UnmarshalJSON(data []byte) error {
	type description Description
	var raw struct {
		description
		ResolutionDate json.RawMessage `json:"resolutionDate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Description(raw.description)

	resolutionDate, err := parseResolutionDate(raw.ResolutionDate)
	if err != nil {
		return err
	}
	d.ResolutionDate = resolutionDate
	return nil
}

func parseResolutionDate(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if seconds, err := strconv.ParseInt(text, 10, 64); err == nil {
			return time.Unix(seconds, 0).UTC(), nil
		}
		t, err := time.Parse(time.RFC3339, text)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid resolution date '%s': %w", text, err)
		}
		return t.UTC(), nil
	}
	var seconds int64
	if err := json.Unmarshal(raw, &seconds); err != nil {
		return time.Time{}, fmt.Errorf("invalid resolution date %s: %w", string(raw), err)
	}
	return time.Unix(seconds, 0).UTC(), nil
}

// ToEntity builds the row stored for ipfsHash.
func (d *Description) ToEntity(ipfsHash string) *relationalDb.EventDescription {
	entity := &relationalDb.EventDescription{
		IpfsHash:       ipfsHash,
		Kind:           relationalDb.EventDescriptionKind_Plain,
		Title:          d.Title,
		Description:    d.Description,
		ResolutionDate: d.ResolutionDate,
		Unit:           d.Unit,
	}
	switch {
	case len(d.Outcomes) > 0:
		entity.Kind = relationalDb.EventDescriptionKind_Categorical
		entity.Outcomes = datatypes.JSONSlice[string](d.Outcomes)
	case d.Unit != "" || d.Decimals != nil:
		entity.Kind = relationalDb.EventDescriptionKind_Scalar
		if d.Decimals != nil {
			entity.Decimals = *d.Decimals
		}
	}
	return entity
}

// Fetcher retrieves the description stored under a content hash.
type Fetcher interface {
	Fetch(ctx context.Context, ipfsHash string) (*Description, error)
}

type Resolver struct {
	fetcher Fetcher
	logger  *zap.Logger
}

func NewResolver(fetcher Fetcher, l *zap.Logger) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		logger:  l,
	}
}

// Resolve returns the stored description for ipfsHash, fetching and storing it
// when it is not known yet. Resolving the same hash twice yields a single row.
func (r *Resolver) Resolve(ctx context.Context, tx relationalDb.Transaction, ipfsHash string) (*relationalDb.EventDescription, error) {
	existing, err := tx.GetEventDescription(ipfsHash)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, relationalDb.ErrNotFound) {
		return nil, err
	}

	description, err := r.fetcher.Fetch(ctx, ipfsHash)
	if err != nil {
		r.logger.Sugar().Errorw("Failed to fetch event description",
			zap.String("ipfsHash", ipfsHash),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to fetch event description %s: %w", ipfsHash, err)
	}

	if err := tx.CreateEventDescription(description.ToEntity(ipfsHash)); err != nil {
		return nil, err
	}
	return tx.GetEventDescription(ipfsHash)
}
