// Package refdata loads the torgi.gov.ru dictionaries of subjects and lot statuses.
package refdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	SubjectsFile = "dynSubRF_new.json"
	StatusesFile = "lotStatus.json"

	UnknownSubject = "Неизвестный субъект"
)

var ErrEmptyDictionary = errors.New("dictionary is empty")

// Subject is a region. Code is the search filter value, RFCode is the subjectRFCode of lots.
type Subject struct {
	Code   string
	Name   string
	RFCode string
}

type Status struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type subjectsFileItem struct {
	MappingTable []struct {
		Code          string `json:"code"`
		BaseAttrValue struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"baseAttrValue"`
	} `json:"mappingTable"`
}

type Catalog struct {
	Subjects []Subject
	Statuses []Status

	subjectsByCode   map[string]Subject
	subjectsByRFCode map[string]Subject
	statusesByCode   map[string]Status
}

// Load reads both dictionaries from dir.
func Load(dir string) (*Catalog, error) {
	subjectsData, err := os.ReadFile(filepath.Join(dir, SubjectsFile))
	if err != nil {
		return nil, fmt.Errorf("can't read subjects: %w", err)
	}

	statusesData, err := os.ReadFile(filepath.Join(dir, StatusesFile))
	if err != nil {
		return nil, fmt.Errorf("can't read statuses: %w", err)
	}

	return Parse(subjectsData, statusesData)
}

func Parse(subjectsData, statusesData []byte) (*Catalog, error) {
	var subjectsFile []subjectsFileItem
	if err := json.Unmarshal(subjectsData, &subjectsFile); err != nil {
		return nil, fmt.Errorf("can't parse subjects: %w", err)
	}

	var statuses []Status
	if err := json.Unmarshal(statusesData, &statuses); err != nil {
		return nil, fmt.Errorf("can't parse statuses: %w", err)
	}

	catalog := &Catalog{
		subjectsByCode:   map[string]Subject{},
		subjectsByRFCode: map[string]Subject{},
		statusesByCode:   map[string]Status{},
	}

	for _, item := range subjectsFile {
		for _, row := range item.MappingTable {
			subject := Subject{
				Code:   strings.TrimSpace(row.Code),
				Name:   strings.TrimSpace(row.BaseAttrValue.Name),
				RFCode: strings.TrimSpace(row.BaseAttrValue.Code),
			}
			if subject.Code == "" {
				continue
			}
			if _, ok := catalog.subjectsByCode[subject.Code]; ok {
				continue
			}

			catalog.Subjects = append(catalog.Subjects, subject)
			catalog.subjectsByCode[subject.Code] = subject
			if subject.RFCode != "" {
				catalog.subjectsByRFCode[subject.RFCode] = subject
			}
		}
	}

	for _, status := range statuses {
		if status.Code == "" {
			continue
		}
		if _, ok := catalog.statusesByCode[status.Code]; ok {
			continue
		}
		catalog.Statuses = append(catalog.Statuses, status)
		catalog.statusesByCode[status.Code] = status
	}

	if len(catalog.Subjects) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDictionary, SubjectsFile)
	}
	if len(catalog.Statuses) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDictionary, StatusesFile)
	}

	return catalog, nil
}

// SubjectName resolves the subjectRFCode of a lot.
func (c *Catalog) SubjectName(rfCode string) string {
	if subject, ok := c.subjectsByRFCode[strings.TrimSpace(rfCode)]; ok {
		return subject.Name
	}
	return UnknownSubject
}

// Subject looks a region up by its filter code.
func (c *Catalog) Subject(code string) (Subject, bool) {
	subject, ok := c.subjectsByCode[code]
	return subject, ok
}

func (c *Catalog) Status(code string) (Status, bool) {
	status, ok := c.statusesByCode[code]
	return status, ok
}

// SubjectNames maps filter codes to names, unknown codes are kept as is.
func (c *Catalog) SubjectNames(codes []string) []string {
	names := make([]string, 0, len(codes))
	for _, code := range codes {
		if subject, ok := c.subjectsByCode[code]; ok {
			names = append(names, subject.Name)
			continue
		}
		names = append(names, code)
	}
	return names
}
