package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

type Cell struct {
	FieldId string           `json:"fieldId"`
	Value   *string          `json:"value"`
	Number  *decimal.Decimal `json:"number"`
	Pending bool             `json:"pending"`
	Error   *string          `json:"error"`
}

type Row struct {
	ID       string   `json:"id"`
	Date     string   `json:"date"`
	Editable bool     `json:"editable"`
	Cells    []Cell   `json:"cells"`
	Pending  []string `json:"pending"`
}

type RowGroup struct {
	Key  string `json:"key"`
	Rows []*Row `json:"rows"`
}

type RecordPage struct {
	SiteId    string                  `json:"siteId"`
	Kind      models.TableKind        `json:"kind"`
	Total     int                     `json:"total"`
	Rows      []*Row                  `json:"rows"`
	Groups    []*RowGroup             `json:"groups"`
	Summaries []models.FieldSummary   `json:"summaries"`
	Cleaning  *models.CleaningSummary `json:"cleaning"`
}

type StageCellPayload struct {
	CellError *models.CellError     `json:"cellError"`
	Session   *workflow.SessionView `json:"session"`
}

type CommitPayload struct {
	Committed bool                    `json:"committed"`
	Errors    models.ValidationErrors `json:"errors"`
	Session   *workflow.SessionView   `json:"session"`
}

type RecordFilter struct {
	Search    *string               `json:"search"`
	Category  *string               `json:"category"`
	SortKey   *string               `json:"sortKey"`
	SortDir   *models.SortDirection `json:"sortDir"`
	GroupBy   *string               `json:"groupBy"`
	SessionId *string               `json:"sessionId"`
}

type NewSite struct {
	ID              *string          `json:"id"`
	ClientId        *string          `json:"clientId"`
	Name            string           `json:"name"`
	Timezone        *string          `json:"timezone"`
	AllowedEditDays *int             `json:"allowedEditDays"`
	TotalModules    *int64           `json:"totalModules"`
	CapacityKw      *decimal.Decimal `json:"-"`
}

type SiteSettings struct {
	Name            *string `json:"name"`
	Timezone        *string `json:"timezone"`
	AllowedEditDays *int    `json:"allowedEditDays"`
	TotalModules    *int64  `json:"totalModules"`
}

type CellInput struct {
	FieldId string `json:"fieldId"`
	Value   string `json:"value"`
}

type NewRecord struct {
	ID     *string     `json:"id"`
	Date   string      `json:"date"`
	Values []CellInput `json:"values"`
}

type StageCell struct {
	RecordId string `json:"recordId"`
	FieldId  string `json:"fieldId"`
	Value    string `json:"value"`
}

// decodeArg reads an input object argument into dst.
func decodeArg(args map[string]interface{}, name string, dst interface{}) error {
	raw, err := json.Marshal(args[name])
	if err != nil {
		return badInput(name, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return badInput(name, err)
	}
	return nil
}

func badInput(name string, err error) error {
	return &gqlerror.Error{
		Message:    fmt.Sprintf("invalid %s: %s", name, err.Error()),
		Extensions: map[string]interface{}{"code": codeBadUserInput, "status": 400},
	}
}

func argString(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}

func argStrings(args map[string]interface{}, name string) []string {
	list, _ := args[name].([]interface{})
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func argKind(args map[string]interface{}) (models.TableKind, error) {
	kind, err := models.ParseTableKind(argString(args, "kind"))
	if err != nil {
		return "", badInput("kind", err)
	}
	return kind, nil
}

// newSiteInput decodes the NewSite argument, reading capacityKw through the
// Decimal scalar.
func newSiteInput(args map[string]interface{}) (NewSite, error) {
	var input NewSite
	if err := decodeArg(args, "input", &input); err != nil {
		return input, err
	}
	raw, _ := args["input"].(map[string]interface{})
	if v, ok := raw["capacityKw"]; ok && v != nil {
		d, err := UnmarshalDecimal(v)
		if err != nil {
			return input, badInput("capacityKw", err)
		}
		input.CapacityKw = &d
	}
	return input, nil
}
