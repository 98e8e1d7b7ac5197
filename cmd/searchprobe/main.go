package main

import (
	"compress/gzip"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"searchetl/internal/searches"
)

var (
	flagIn   = flag.String("in", "", "path to a sampled export (.csv or .csv.gz, two columns, no header)")
	flagRaw  = flag.Bool("raw", false, "treat the input as one raw blob instead of a CSV export")
	flagMax  = flag.Int("max", 0, "stop after this many rows (0 = all)")
	flagDump = flag.Int("dump", 0, "print the first n decoded records")
)

// main tallies field presence, validity, and type spellings over a sampled
// export, so feed grammar drift shows up before a production run trips on
// it. Unlike the pipeline, the probe keeps going past bad blobs.
func main() {
	flag.Parse()
	if *flagIn == "" {
		fmt.Fprintln(os.Stderr, "usage: searchprobe -in sample.csv.gz [-raw] [-max n] [-dump n]")
		os.Exit(2)
	}

	f, err := os.Open(*flagIn)
	if err != nil {
		fatal(err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(*flagIn, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			fatal(err)
		}
		defer gz.Close()
		r = gz
	}

	t := newTally()
	if *flagRaw {
		data, err := io.ReadAll(r)
		if err != nil {
			fatal(err)
		}
		t.row("(raw)", string(data))
	} else {
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = 2
		for {
			rec, err := cr.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				fatal(err)
			}
			t.row(rec[0], rec[1])
			if *flagMax > 0 && t.rows >= *flagMax {
				break
			}
		}
	}
	t.report()
}

type tally struct {
	rows, total, valid  int
	badBlobs, badValues int
	dumped              int
	presence            map[string]int
	spellings           map[string]int
}

func newTally() *tally {
	return &tally{presence: map[string]int{}, spellings: map[string]int{}}
}

func (t *tally) row(userID, blob string) {
	t.rows++
	recs, err := searches.DecodeBlob(blob)
	if err != nil {
		t.badBlobs++
		fmt.Fprintf(os.Stderr, "user %s: %v\n", userID, err)
		return
	}
	t.total += len(recs)
	for _, sr := range recs {
		for field := range sr {
			t.presence[field]++
		}
		t.spellings[sr[searches.FieldType]]++
		if t.dumped < *flagDump {
			t.dumped++
			printRecord(t.dumped, userID, sr)
		}
		ok, err := searches.Valid(sr)
		if err != nil {
			t.badValues++
			continue
		}
		if ok {
			t.valid++
		}
	}
}

func (t *tally) report() {
	fmt.Printf("rows: %d\n", t.rows)
	fmt.Printf("searches: %d (valid %d)\n", t.total, t.valid)
	if t.badBlobs > 0 {
		fmt.Printf("undecodable blobs: %d\n", t.badBlobs)
	}
	if t.badValues > 0 {
		fmt.Printf("unparseable values: %d\n", t.badValues)
	}

	fmt.Println("field presence:")
	for _, field := range sortedKeys(t.presence) {
		fmt.Printf("  %-14s %d\n", field, t.presence[field])
	}
	fmt.Println("type spellings:")
	for _, v := range sortedKeys(t.spellings) {
		fmt.Printf("  %-14q %d\n", v, t.spellings[v])
	}
}

// printRecord renders one decoded record with sorted fields so dump output
// is stable across runs.
func printRecord(n int, userID string, r searches.Record) {
	fields := make([]string, 0, len(r))
	for k := range r {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	fmt.Printf("record %d user=%s", n, userID)
	for _, k := range fields {
		fmt.Printf(" %s=%q", k, r[k])
	}
	fmt.Println()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
