package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
)

// coolingmodel integrates Newton's law of cooling, dT/dt = -kappa (T - t_env),
// and writes the temperature trace as CSV, one row per minute. The trace goes
// to the outfile named in the input and to stdout, so it can be collected
// either from a shared filesystem or from the captured job output.

type input struct {
	Outfile  string  `json:"outfile"`
	Kappa    float64 `json:"kappa"`
	TEnv     float64 `json:"t_env"`
	TempInit float64 `json:"temp_init"`
}

const minutes = 600

func main() {
	flag.Parse()

	path := "cooling_in.json"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read input %s: %v", path, err)
	}

	var in input
	if err := json.Unmarshal(raw, &in); err != nil {
		log.Fatalf("Failed to parse input %s: %v", path, err)
	}
	if in.Kappa <= 0 {
		log.Fatalf("kappa must be positive, got %v", in.Kappa)
	}

	var b strings.Builder
	b.WriteString("t,te\n")

	te := in.TempInit
	for t := 0; t <= minutes; t++ {
		fmt.Fprintf(&b, "%d,%g\n", t, te)
		te += -in.Kappa * (te - in.TEnv)
	}

	trace := b.String()

	if in.Outfile != "" {
		if err := os.WriteFile(in.Outfile, []byte(trace), 0644); err != nil {
			log.Fatalf("Failed to write output %s: %v", in.Outfile, err)
		}
	}

	fmt.Print(trace)
}
