// Command genobs emits deterministic synthetic observation messages in the
// observation-topic wire format, one JSON object per line. Useful for seeding
// a local topic or building test fixtures.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"
)

type observation struct {
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Time            time.Time `json:"time"`
	PrecipitationMM float64   `json:"precipitation_mm"`
	TemperatureC    *float64  `json:"temperature_c,omitempty"`
}

func main() {
	lat := flag.Float64("lat", 47.61, "latitude of the synthetic station")
	lon := flag.Float64("lon", -122.33, "longitude of the synthetic station")
	years := flag.Int("years", 30, "years of history to generate")
	seed := flag.Int64("seed", 1, "random seed")
	out := flag.String("out", "-", "output file, - for stdout")
	flag.Parse()

	w := os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create output:", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	rng := rand.New(rand.NewSource(*seed))
	bw := bufio.NewWriter(w)
	defer bw.Flush()
	enc := json.NewEncoder(bw)

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(-*years, 0, 0)
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		obs := synthesize(rng, *lat, *lon, day)
		if err := enc.Encode(obs); err != nil {
			fmt.Fprintln(os.Stderr, "encode observation:", err)
			os.Exit(1)
		}
	}
}

// synthesize produces one day's observation: a wet-season sinusoid modulating
// both rain odds and amounts, plus seeded noise.
func synthesize(rng *rand.Rand, lat, lon float64, day time.Time) observation {
	doy := float64(day.YearDay())
	season := math.Sin(2*math.Pi*(doy-280)/365.25)*0.5 + 0.5 // peaks in autumn

	var precip float64
	if rng.Float64() < 0.2+0.5*season {
		precip = rng.ExpFloat64() * (2 + 8*season)
	}

	temp := 10 + 12*math.Sin(2*math.Pi*(doy-110)/365.25) + rng.NormFloat64()*2

	return observation{
		Latitude:        lat,
		Longitude:       lon,
		Time:            day.Add(12 * time.Hour),
		PrecipitationMM: math.Round(precip*100) / 100,
		TemperatureC:    &temp,
	}
}
