// seed_leads.go — standalone script to parse a CSV export of leads and route
// them through the leadrouter API.
//
// CSV columns: id,name,industry,deal_size,source
//
// Usage:
//
//	go run scripts/seed_leads.go -csv /path/to/leads.csv -api http://localhost:8700 -org org-1
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
)

type lead struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Industry string  `json:"industry,omitempty"`
	DealSize float64 `json:"deal_size"`
	Source   string  `json:"source,omitempty"`
}

type routeRequest struct {
	Lead lead `json:"lead"`
}

func main() {
	csvPath := flag.String("csv", "leads.csv", "path to lead CSV export")
	apiURL := flag.String("api", "http://localhost:8700", "leadrouter API base URL")
	orgID := flag.String("org", "", "X-Org-ID header value")
	dryRun := flag.Bool("dry-run", false, "print leads without posting")
	flag.Parse()

	if *orgID == "" {
		log.Fatal("-org is required")
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		log.Fatalf("read header: %v", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"id", "deal_size"} {
		if _, ok := col[required]; !ok {
			log.Fatalf("csv missing %q column", required)
		}
	}

	var leads []lead
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("read row: %v", err)
		}
		l := lead{ID: rec[col["id"]]}
		if i, ok := col["name"]; ok {
			l.Name = rec[i]
		}
		if i, ok := col["industry"]; ok {
			l.Industry = rec[i]
		}
		if i, ok := col["source"]; ok {
			l.Source = rec[i]
		}
		if size, err := strconv.ParseFloat(rec[col["deal_size"]], 64); err == nil {
			l.DealSize = size
		}
		if l.ID == "" {
			continue
		}
		leads = append(leads, l)
	}

	fmt.Printf("parsed %d leads from %s\n", len(leads), *csvPath)
	if *dryRun {
		for _, l := range leads {
			fmt.Printf("  %s  %-20s %-15s $%.0f\n", l.ID, l.Name, l.Industry, l.DealSize)
		}
		return
	}

	routed := 0
	for _, l := range leads {
		body, _ := json.Marshal(routeRequest{Lead: l})
		req, err := http.NewRequest("POST", *apiURL+"/api/v1/leads/route", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Org-ID", *orgID)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Printf("route %s: %v", l.ID, err)
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			log.Printf("route %s: %d %s", l.ID, resp.StatusCode, string(respBody))
			continue
		}
		routed++
	}
	fmt.Printf("routed %d/%d leads\n", routed, len(leads))
}
