package pipedrive

import "github.com/crmbridge/crmbridge/internal/domain/record"

// labeledValue is the vendor shape for multi-valued contact fields.
type labeledValue struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
}

// personPayload mirrors the vendor person shape. Emails and phones arrive as
// labeled value lists and are flattened to plain strings.
type personPayload struct {
	ID      int            `json:"id"`
	Name    string         `json:"name"`
	Email   []labeledValue `json:"email"`
	Phone   []labeledValue `json:"phone"`
	OrgID   *int           `json:"org_id"`
	AddTime string         `json:"add_time"`
}

func (p personPayload) toRecord() record.Person {
	return record.Person{
		ID:      p.ID,
		Name:    p.Name,
		Emails:  flatten(p.Email),
		Phones:  flatten(p.Phone),
		OrgID:   p.OrgID,
		AddTime: p.AddTime,
	}
}

func flatten(values []labeledValue) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v.Value != "" {
			out = append(out, v.Value)
		}
	}
	return out
}
