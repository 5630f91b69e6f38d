// generate-ledger writes a synthetic per-transaction ledger for demos and load tests.
// Clients are drawn from a few spending archetypes so clustering has structure to find.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

type archetype struct {
	name        string
	incomeMean  float64
	incomeSD    float64
	debtRatio   float64 // mean of total_debt / yearly_income
	creditMean  float64
	txPerYear   float64
	amountMean  float64
	cardsMin    int
	cardsMax    int
	weight      float64
	zeroIncomes float64 // share of clients written with no income, for rejection paths
}

var archetypes = []archetype{
	{name: "indebted", incomeMean: 38000, incomeSD: 9000, debtRatio: 2.8, creditMean: 590, txPerYear: 70, amountMean: 45, cardsMin: 3, cardsMax: 7, weight: 0.2},
	{name: "spender", incomeMean: 52000, incomeSD: 12000, debtRatio: 0.9, creditMean: 680, txPerYear: 260, amountMean: 60, cardsMin: 2, cardsMax: 6, weight: 0.25},
	{name: "premium", incomeMean: 95000, incomeSD: 20000, debtRatio: 0.3, creditMean: 790, txPerYear: 90, amountMean: 80, cardsMin: 1, cardsMax: 4, weight: 0.15},
	{name: "affluent", incomeMean: 140000, incomeSD: 35000, debtRatio: 0.7, creditMean: 740, txPerYear: 60, amountMean: 320, cardsMin: 2, cardsMax: 5, weight: 0.15},
	{name: "saver", incomeMean: 60000, incomeSD: 10000, debtRatio: 0.4, creditMean: 720, txPerYear: 40, amountMean: 35, cardsMin: 1, cardsMax: 3, weight: 0.25, zeroIncomes: 0.01},
}

func main() {
	output := flag.String("output", "", "Output CSV file (default: stdout)")
	clients := flag.Int("clients", 1000, "Number of clients to generate")
	seed := flag.Uint64("seed", 42, "Random seed")
	startStr := flag.String("start", "2019-01-01", "First transaction date (YYYY-MM-DD)")
	months := flag.Int("months", 12, "Length of the ledger in months")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)

	if *clients <= 0 {
		log.Fatal("-clients must be positive")
	}
	if *months <= 0 {
		log.Fatal("-months must be positive")
	}
	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		log.Fatalf("Invalid -start date: %v", err)
	}

	w := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		w = f
	}

	g := &generator{
		rng:   rand.New(rand.NewPCG(*seed, *seed^0x5bd1e995)),
		start: start,
		days:  int(start.AddDate(0, *months, 0).Sub(start).Hours() / 24),
	}
	rows, err := g.write(w, *clients, float64(*months)/12)
	if err != nil {
		log.Fatalf("Failed to write ledger: %v", err)
	}

	log.WithFields(logrus.Fields{
		"clients":      *clients,
		"transactions": rows,
		"output":       *output,
	}).Info("Generated ledger")
}

type generator struct {
	rng   *rand.Rand
	start time.Time
	days  int
}

func (g *generator) write(w io.Writer, clients int, years float64) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"client_id", "date", "amount", "yearly_income", "total_debt", "credit_score", "num_credit_cards",
	}); err != nil {
		return 0, err
	}

	rows := 0
	for i := 0; i < clients; i++ {
		a := g.pick()
		id := strconv.Itoa(1000 + i)

		income := math.Max(8000, g.normal(a.incomeMean, a.incomeSD))
		if g.rng.Float64() < a.zeroIncomes {
			income = 0
		}
		debt := math.Max(0, g.normal(a.debtRatio, a.debtRatio/4)) * math.Max(income, a.incomeMean/2)
		credit := math.Min(850, math.Max(300, g.normal(a.creditMean, 40)))
		cards := a.cardsMin + g.rng.IntN(a.cardsMax-a.cardsMin+1)

		n := max(1, int(g.normal(a.txPerYear*years, a.txPerYear*years/5)))
		for j := 0; j < n; j++ {
			amount := math.Max(1, g.rng.ExpFloat64()*a.amountMean)
			date := g.start.AddDate(0, 0, g.rng.IntN(g.days))
			record := []string{
				id,
				date.Format("02/01/2006"),
				fmt.Sprintf("$%.2f", amount),
				strconv.FormatFloat(math.Round(income), 'f', 0, 64),
				strconv.FormatFloat(math.Round(debt), 'f', 0, 64),
				strconv.FormatFloat(math.Round(credit), 'f', 0, 64),
				strconv.Itoa(cards),
			}
			if err := cw.Write(record); err != nil {
				return rows, err
			}
			rows++
		}
	}

	cw.Flush()
	return rows, cw.Error()
}

func (g *generator) pick() archetype {
	r := g.rng.Float64()
	for _, a := range archetypes {
		if r < a.weight {
			return a
		}
		r -= a.weight
	}
	return archetypes[len(archetypes)-1]
}

func (g *generator) normal(mean, sd float64) float64 {
	return mean + g.rng.NormFloat64()*sd
}
