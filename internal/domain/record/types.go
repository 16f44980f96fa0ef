// Package record defines the typed CRM records exchanged with the upstream API.
package record

// Deal is a sales deal in the CRM.
// Optional associations are pointers so "absent" is distinguishable from zero.
type Deal struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Value      float64 `json:"value,omitempty"`
	Currency   string  `json:"currency,omitempty"`
	Status     string  `json:"status,omitempty"`
	StageID    int     `json:"stage_id,omitempty"`
	PipelineID int     `json:"pipeline_id,omitempty"`
	PersonID   *int    `json:"person_id,omitempty"`
	OrgID      *int    `json:"org_id,omitempty"`
	OwnerName  string  `json:"owner_name,omitempty"`
	AddTime    string  `json:"add_time,omitempty"`
	UpdateTime string  `json:"update_time,omitempty"`
}

// Person is a contact in the CRM.
type Person struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Emails  []string `json:"emails,omitempty"`
	Phones  []string `json:"phones,omitempty"`
	OrgID   *int     `json:"org_id,omitempty"`
	AddTime string   `json:"add_time,omitempty"`
}

// Organization is a company record in the CRM.
type Organization struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	PeopleCount int    `json:"people_count,omitempty"`
	AddTime     string `json:"add_time,omitempty"`
}

// Pipeline is an ordered container of stages.
type Pipeline struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Stage is a step within a pipeline.
type Stage struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	PipelineID int    `json:"pipeline_id"`
	Order      int    `json:"order_nr,omitempty"`
}

// DealFilter narrows deal listings and searches.
// Zero-valued fields are "no filter". Each requested filter is applied
// exactly once, regardless of whether the upstream already filtered.
type DealFilter struct {
	Status     string
	StageID    int
	PipelineID int
}

// Match reports whether the deal satisfies every set filter.
func (f DealFilter) Match(d Deal) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.StageID != 0 && d.StageID != f.StageID {
		return false
	}
	if f.PipelineID != 0 && d.PipelineID != f.PipelineID {
		return false
	}
	return true
}

// Apply returns the subset of deals satisfying the filter.
func (f DealFilter) Apply(deals []Deal) []Deal {
	if f == (DealFilter{}) {
		return deals
	}
	out := make([]Deal, 0, len(deals))
	for _, d := range deals {
		if f.Match(d) {
			out = append(out, d)
		}
	}
	return out
}

// NewDeal carries the fields accepted when creating a deal.
type NewDeal struct {
	Title    string
	Value    float64
	Currency string
	PersonID int
	OrgID    int
	StageID  int
	Status   string
}

// NewPerson carries the fields accepted when creating a person.
type NewPerson struct {
	Name  string
	Email string
	Phone string
	OrgID int
}

// NewOrganization carries the fields accepted when creating an organization.
type NewOrganization struct {
	Name string
}
