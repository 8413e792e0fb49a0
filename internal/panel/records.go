package panel

import "import_panel/internal/models"

const (
	defaultPerPage = 20
	maxPerPage     = 500
)

// RecordTable is the append-only list of finished records.
type RecordTable struct {
	records []models.FinishedRecord
}

// RecordPage is one page of the table after filtering.
type RecordPage struct {
	Items   []models.FinishedRecord   `json:"items"`
	Type    models.RecordType         `json:"type,omitempty"`
	Page    int                       `json:"page"`
	PerPage int                       `json:"per_page"`
	Total   int                       `json:"total"` // matching the filter
	Pages   int                       `json:"pages"`
	Counts  map[models.RecordType]int `json:"counts"` // per type, unfiltered
}

// Append adds one record. No dedup, no cap.
func (t *RecordTable) Append(r models.FinishedRecord) {
	t.records = append(t.records, r)
}

// Replace swaps the whole table (status snapshot).
func (t *RecordTable) Replace(rs []models.FinishedRecord) {
	t.records = append([]models.FinishedRecord(nil), rs...)
}

// Reset empties the table.
func (t *RecordTable) Reset() { t.records = nil }

// Len is the number of records held.
func (t *RecordTable) Len() int { return len(t.records) }

// All returns a copy of every record in arrival order.
func (t *RecordTable) All() []models.FinishedRecord {
	return append([]models.FinishedRecord(nil), t.records...)
}

// Counts tallies records per type.
func (t *RecordTable) Counts() map[models.RecordType]int {
	out := make(map[models.RecordType]int, len(models.RecordTypes))
	for _, typ := range models.RecordTypes {
		out[typ] = 0
	}
	for _, r := range t.records {
		out[r.Type]++
	}
	return out
}

// Page filters by typ (empty = all) and returns the 1-based page.
func (t *RecordTable) Page(typ models.RecordType, page, perPage int) RecordPage {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page < 1 {
		page = 1
	}

	matched := t.records
	if typ != "" {
		matched = make([]models.FinishedRecord, 0, len(t.records))
		for _, r := range t.records {
			if r.Type == typ {
				matched = append(matched, r)
			}
		}
	}

	res := RecordPage{
		Type:    typ,
		Page:    page,
		PerPage: perPage,
		Total:   len(matched),
		Pages:   (len(matched) + perPage - 1) / perPage,
		Counts:  t.Counts(),
		Items:   []models.FinishedRecord{},
	}
	start := (page - 1) * perPage
	if start >= len(matched) {
		return res
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}
	res.Items = append(res.Items, matched[start:end]...)
	return res
}
