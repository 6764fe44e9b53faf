package item

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	domitem "github.com/lostlink/matcher/internal/domain/item"
)

// Hash field names.
const (
	fieldID          = "id"
	fieldKind        = "kind"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldCategory    = "category"
	fieldLocation    = "location"
	fieldOccurredAt  = "occurred_at"
	fieldCreatedAt   = "created_at"
	fieldEmbedding   = "embedding"
	fieldMatches     = "matches"
)

// matchDTO is the stored shape of one match entry.
type matchDTO struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// buildHashFields converts an item into the fields written on create.
func buildHashFields(it *domitem.Item) (map[string]string, error) {
	d := it.Details()
	matches, err := encodeMatches(it.Matches())
	if err != nil {
		return nil, err
	}
	m := map[string]string{
		fieldID:          it.ID(),
		fieldKind:        string(it.Kind()),
		fieldTitle:       d.Title,
		fieldDescription: d.Description,
		fieldCategory:    d.Category,
		fieldLocation:    d.Location,
		fieldOccurredAt:  d.OccurredAt,
		fieldCreatedAt:   it.CreatedAt().Format(time.RFC3339Nano),
		fieldMatches:     matches,
	}
	if it.HasEmbedding() {
		m[fieldEmbedding] = vectorToBytes(it.Embedding())
	}
	return m, nil
}

// parseHashFields hydrates an item from its stored hash.
func parseHashFields(id string, m map[string]string) (domitem.Item, error) {
	kind, err := domitem.ParseKind(m[fieldKind])
	if err != nil {
		return domitem.Item{}, fmt.Errorf("item %s: %w", id, err)
	}

	var createdAt time.Time
	if raw := m[fieldCreatedAt]; raw != "" {
		createdAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domitem.Item{}, fmt.Errorf("item %s: parse created_at: %w", id, err)
		}
	}

	var vec []float32
	if raw := m[fieldEmbedding]; raw != "" {
		vec, err = bytesToVector(raw)
		if err != nil {
			return domitem.Item{}, fmt.Errorf("item %s: %w", id, err)
		}
	}

	matches, err := decodeMatches(m[fieldMatches])
	if err != nil {
		return domitem.Item{}, fmt.Errorf("item %s: %w", id, err)
	}

	d := domitem.Details{
		Title:       m[fieldTitle],
		Description: m[fieldDescription],
		Category:    m[fieldCategory],
		Location:    m[fieldLocation],
		OccurredAt:  m[fieldOccurredAt],
	}
	return domitem.Reconstruct(id, kind, d, createdAt, vec, matches), nil
}

func encodeMatches(ms domitem.Matches) (string, error) {
	out := make([]matchDTO, len(ms))
	for i, e := range ms {
		reasons := e.Reasons
		if reasons == nil {
			reasons = []string{}
		}
		out[i] = matchDTO{ID: e.TargetID, Title: e.DisplayTitle, Score: e.Score, Reasons: reasons}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal matches: %w", err)
	}
	return string(data), nil
}

// decodeMatches parses a stored match list. An absent field is an empty list.
func decodeMatches(raw string) (domitem.Matches, error) {
	if raw == "" {
		return domitem.Matches{}, nil
	}
	var dtos []matchDTO
	if err := json.Unmarshal([]byte(raw), &dtos); err != nil {
		return nil, fmt.Errorf("unmarshal matches: %w", err)
	}
	out := make(domitem.Matches, len(dtos))
	for i, d := range dtos {
		reasons := d.Reasons
		if reasons == nil {
			reasons = []string{}
		}
		out[i] = domitem.MatchEntry{TargetID: d.ID, DisplayTitle: d.Title, Score: d.Score, Reasons: reasons}
	}
	return out, nil
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func bytesToVector(s string) ([]float32, error) {
	if len(s)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding data: len=%d (not multiple of 4)", len(s))
	}
	b := []byte(s)
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
