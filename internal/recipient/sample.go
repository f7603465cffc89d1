package recipient

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

// Sample rows written by WriteSample.
var sampleRows = [][]string{
	{"John", "Doe", "https://www.linkedin.com/in/johndoe/", "TechCorp", "Software Engineer", "San Francisco, CA"},
	{"Jane", "Smith", "https://www.linkedin.com/in/janesmith/", "DataCo", "Data Scientist", "New York, NY"},
}

var reSlugUnsafe = regexp.MustCompile(`[^a-z0-9-]+`)

// WriteSample writes a template recipients CSV with the canonical sample rows
// followed by extra generated ones. Existing files are overwritten.
func WriteSample(path string, extra int) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	_ = w.Write(Columns)
	for _, row := range sampleRows {
		_ = w.Write(row)
	}
	if extra > 0 {
		faker := gofakeit.New(0)
		for _, row := range FakeRows(faker, extra) {
			_ = w.Write(row)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// FakeRows generates n plausible rows in Columns order.
func FakeRows(faker *gofakeit.Faker, n int) [][]string {
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		first, last := faker.FirstName(), faker.LastName()
		slug := reSlugUnsafe.ReplaceAllString(strings.ToLower(first+"-"+last), "")
		rows = append(rows, []string{
			first,
			last,
			fmt.Sprintf("https://www.linkedin.com/in/%s-%d/", slug, i+1),
			faker.Company(),
			faker.JobTitle(),
			faker.City() + ", " + faker.StateAbr(),
		})
	}
	return rows
}
