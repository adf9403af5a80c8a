package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// BudgetGenerator writes a sample set of budget sources for one year
type BudgetGenerator struct {
	Year      int
	LastMonth int
	Seed      int64
	rng       *rand.Rand
}

var (
	revenueCategories = map[string]float64{
		"VENDAS DE SERVIÇOS":     180000,
		"CONTRIBUIÇÕES":          650000,
		"APLICAÇÕES FINANCEIRAS": 90000,
		"CONVÊNIOS":              40000,
	}
	expenseCategories = map[string]float64{
		"PESSOAL E ENCARGOS":    420000,
		"SERVIÇOS DE TERCEIROS": 210000,
		"MATERIAIS":             35000,
		"VIAGENS":               18000,
	}
	monthLabels = []string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}
)

func main() {
	var (
		outputDir = flag.String("output-dir", "../generated", "Output directory for generated files")
		year      = flag.Int("year", time.Now().Year(), "Budget year")
		lastMonth = flag.Int("last-month", 9, "Last month with executed values (1-12)")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
	)
	flag.Parse()

	if *lastMonth < 1 || *lastMonth > 12 {
		log.Fatalf("Invalid last month: %d", *lastMonth)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	g := &BudgetGenerator{
		Year:      *year,
		LastMonth: *lastMonth,
		Seed:      *seed,
		rng:       rand.New(rand.NewSource(*seed)),
	}

	files := []struct {
		name string
		rows [][]string
	}{
		{"receitas.csv", g.Executed(revenueCategories)},
		{"despesas.csv", g.Executed(expenseCategories)},
		{"ppa_receitas.csv", g.Planned(revenueCategories)},
		{"ppa_despesas.csv", g.Planned(expenseCategories)},
		{"previsao_receitas.csv", g.Forecast(revenueCategories)},
		{"previsao_despesas.csv", g.Forecast(expenseCategories)},
	}

	for _, f := range files {
		path := filepath.Join(*outputDir, f.name)
		if err := writeCSV(path, f.rows); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		fmt.Printf("Generated %d rows in %s\n", len(f.rows)-1, path)
	}

	configPath := filepath.Join(*outputDir, "report.yaml")
	if err := g.WriteConfig(configPath, *outputDir); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}

	fmt.Printf("Generated report config in %s\n", configPath)
	fmt.Printf("Year: %d, executed through month %d\n", g.Year, g.LastMonth)
	fmt.Printf("Seed used: %d\n", g.Seed)
}

// Executed produces the realized values up to LastMonth, keyed by month number
func (g *BudgetGenerator) Executed(categories map[string]float64) [][]string {
	rows := [][]string{{"Grupo", "MesNum", "Valor"}}
	for _, category := range sortedKeys(categories) {
		for month := 1; month <= g.LastMonth; month++ {
			// some categories have no movement in a month
			if g.rng.Float64() < 0.1 {
				continue
			}
			rows = append(rows, []string{category, fmt.Sprint(month), g.vary(categories[category], 0.25)})
		}
	}
	return rows
}

// Planned produces the plan for the twelve months, keyed by month label
func (g *BudgetGenerator) Planned(categories map[string]float64) [][]string {
	rows := [][]string{{"Descrição Natureza", "Mês", "Valor"}}
	for _, category := range sortedKeys(categories) {
		for month := 1; month <= 12; month++ {
			rows = append(rows, []string{category, monthLabels[month-1], g.vary(categories[category], 0.05)})
		}
	}
	return rows
}

// Forecast revises the months after LastMonth for half of the categories
func (g *BudgetGenerator) Forecast(categories map[string]float64) [][]string {
	rows := [][]string{{"Grupo", "Mes", "Valor"}}
	for i, category := range sortedKeys(categories) {
		if i%2 == 1 {
			continue
		}
		for month := g.LastMonth + 1; month <= 12; month++ {
			rows = append(rows, []string{category, monthLabels[month-1], g.vary(categories[category], 0.15)})
		}
	}
	return rows
}

// vary returns base +/- spread as a pt-BR formatted amount
func (g *BudgetGenerator) vary(base, spread float64) string {
	factor := 1 + (g.rng.Float64()*2-1)*spread
	value := decimal.NewFromFloat(base * factor).Round(2)
	return brazilian(value)
}

// WriteConfig writes a report config that reads the generated files
func (g *BudgetGenerator) WriteConfig(path, dir string) error {
	source := func(name, file string, optional bool) map[string]interface{} {
		return map[string]interface{}{
			"name":      name,
			"path":      filepath.Join(dir, file),
			"delimiter": ";",
			"optional":  optional,
		}
	}

	config := map[string]interface{}{
		"year":  g.Year,
		"title": fmt.Sprintf("Prévia orçamentária %d", g.Year),
		"revenue": map[string]interface{}{
			"executed": source("receitas", "receitas.csv", false),
			"planned":  source("ppa_receitas", "ppa_receitas.csv", true),
			"forecast": source("previsao_receitas", "previsao_receitas.csv", true),
		},
		"expense": map[string]interface{}{
			"executed": source("despesas", "despesas.csv", false),
			"planned":  source("ppa_despesas", "ppa_despesas.csv", true),
			"forecast": source("previsao_despesas", "previsao_despesas.csv", true),
		},
		"summary": map[string]interface{}{
			"exclude_revenue_category": "APLICAÇÕES FINANCEIRAS",
		},
		"revenue_categories": sortedKeys(revenueCategories),
		"expense_categories": sortedKeys(expenseCategories),
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = ';'
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return file.Sync()
}

// brazilian formats 1234.5 as 1.234,50
func brazilian(v decimal.Decimal) string {
	s := v.StringFixed(2)
	sign := ""
	if s[0] == '-' {
		sign, s = "-", s[1:]
	}
	intPart, frac := s[:len(s)-3], s[len(s)-2:]

	var grouped []byte
	for i := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped = append(grouped, '.')
		}
		grouped = append(grouped, intPart[i])
	}
	return sign + string(grouped) + "," + frac
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
