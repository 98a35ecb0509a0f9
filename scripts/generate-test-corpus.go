//go:build ignore

// Package main generates a synthetic document corpus for benchmarking
// ingestion and search.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var invoiceTemplate = `INVOICE %s

From: %s
Billed to: Example Customer Ltd
Date: %s
Due: net 30

Description                          Amount
-----------------------------------------------
%s
-----------------------------------------------
Total: $%d.%02d

Payment reference: %s
Contact: billing@%s.example.com
VAT: DE%09d
`

var noteTemplate = `# %s

%s

## Details

%s

## Follow-ups

- review the %s figures before %s
- confirm the %s order with %s
`

var (
	vendors = []string{
		"Acme Corporation", "Globex Inc", "Initech LLC", "Umbrella Ltd",
		"Stark Industries", "Wayne Enterprises", "Hooli GmbH", "Vehement AG",
		"Massive Dynamic", "Soylent Corp",
	}
	products = []string{
		"widget", "gasket", "flange", "bracket", "coupler",
		"manifold", "sprocket", "gear", "bearing", "valve",
		"sensor", "actuator", "relay", "switch", "housing",
	}
	topics = []string{
		"quarterly budget", "vendor negotiation", "warehouse inventory",
		"shipping schedule", "maintenance plan", "procurement review",
		"travel expenses", "office supplies", "energy costs",
		"insurance renewal",
	}
	months = []string{
		"January", "February", "March", "April", "May", "June", "July",
		"August", "September", "October", "November", "December",
	}
	sentences = []string{
		"The supplier confirmed delivery for the end of the month.",
		"Payment terms remain net 30 as agreed last quarter.",
		"Inventory levels dropped below the reorder threshold.",
		"The new contract includes a volume discount above 500 units.",
		"Shipping costs increased by four percent year over year.",
		"The audit flagged two duplicate purchase orders.",
		"Renewal pricing is locked until the end of the fiscal year.",
		"The warehouse team requested an updated packing list.",
	}
)

func main() {
	flag.Parse()
	rand.Seed(*seed)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	subdirs := []string{"invoices", "notes", "csv"}
	for _, subdir := range subdirs {
		if err := os.MkdirAll(filepath.Join(*outputDir, subdir), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating subdirectory: %v\n", err)
			os.Exit(1)
		}
	}

	var generated int
	for i := 0; i < *numFiles; i++ {
		var err error
		switch i % 3 {
		case 0:
			err = generateInvoice(i)
		case 1:
			err = generateNote(i)
		case 2:
			err = generateCSV(i)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating document %d: %v\n", i, err)
			os.Exit(1)
		}
		generated++
	}

	fmt.Printf("Generated %d documents in %s\n", generated, *outputDir)
}

func pick(pool []string) string {
	return pool[rand.Intn(len(pool))]
}

func invoiceID(index int) string {
	return fmt.Sprintf("INV-%d-%05d", 2020+index%6, index)
}

func generateInvoice(index int) error {
	vendor := pick(vendors)
	domain := strings.ToLower(strings.Fields(vendor)[0])
	lines := make([]string, 2+rand.Intn(4))
	total := 0
	for i := range lines {
		qty := 1 + rand.Intn(20)
		unit := 100 + rand.Intn(20000) // cents
		amount := qty * unit
		total += amount
		lines[i] = fmt.Sprintf("%-4d %-30s $%d.%02d", qty, pick(products), amount/100, amount%100)
	}
	date := fmt.Sprintf("%d-%02d-%02d", 2020+index%6, 1+rand.Intn(12), 1+rand.Intn(28))

	content := fmt.Sprintf(invoiceTemplate,
		invoiceID(index), vendor, date, strings.Join(lines, "\n"),
		total/100, total%100, invoiceID(index), domain, rand.Intn(1_000_000_000))

	path := filepath.Join(*outputDir, "invoices", fmt.Sprintf("invoice_%04d.txt", index))
	return os.WriteFile(path, []byte(content), 0644)
}

func generateNote(index int) error {
	topic := pick(topics)
	var body []string
	for i := 0; i < 2+rand.Intn(4); i++ {
		body = append(body, pick(sentences))
	}
	var details []string
	for i := 0; i < 3+rand.Intn(5); i++ {
		details = append(details, pick(sentences))
	}

	title := strings.ToUpper(topic[:1]) + topic[1:]
	content := fmt.Sprintf(noteTemplate,
		title, strings.Join(body, " "), strings.Join(details, "\n\n"),
		pick(topics), pick(months), pick(products), pick(vendors))

	path := filepath.Join(*outputDir, "notes", fmt.Sprintf("note_%04d.md", index))
	return os.WriteFile(path, []byte(content), 0644)
}

func generateCSV(index int) error {
	var b strings.Builder
	b.WriteString("item,quantity,unit_price,vendor,order_date\n")
	rows := 10 + rand.Intn(200)
	for i := 0; i < rows; i++ {
		cents := 100 + rand.Intn(50000)
		fmt.Fprintf(&b, "%s,%d,$%d.%02d,%s,%d-%02d-%02d\n",
			pick(products), 1+rand.Intn(100), cents/100, cents%100,
			pick(vendors), 2020+rand.Intn(6), 1+rand.Intn(12), 1+rand.Intn(28))
	}

	path := filepath.Join(*outputDir, "csv", fmt.Sprintf("orders_%04d.csv", index))
	return os.WriteFile(path, []byte(b.String()), 0644)
}
