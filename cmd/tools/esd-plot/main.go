// Command esd-plot dumps the Earth–Sun distance model over a full year as
// CSV and optionally renders it as a PNG curve. Useful for eyeballing the
// orbital approximation against the published distance tables.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/NikosAlexandris/ikonos-toar/internal/solar"
)

var (
	csvPath = flag.String("csv", "", "Write the day-of-year distance table to this CSV file (default stdout)")
	pngPath = flag.String("png", "", "Render the distance curve to this PNG file")
)

func main() {
	flag.Parse()

	out := os.Stdout
	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			log.Fatalf("Failed to create CSV file: %v", err)
		}
		defer f.Close()
		out = f
	}

	fmt.Fprintln(out, "doy,earth_sun_au")
	pts := make(plotter.XYs, 0, 366)
	for doy := 1; doy <= 366; doy++ {
		d := solar.EarthSunDistance(doy)
		fmt.Fprintf(out, "%d,%.7f\n", doy, d)
		pts = append(pts, plotter.XY{X: float64(doy), Y: d})
	}

	if *pngPath == "" {
		return
	}

	p := plot.New()
	p.Title.Text = "Earth-Sun distance"
	p.X.Label.Text = "Day of year"
	p.Y.Label.Text = "Distance (AU)"

	line, err := plotter.NewLine(pts)
	if err != nil {
		log.Fatalf("Failed to build distance line: %v", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Add(plotter.NewGrid())

	if err := p.Save(10*vg.Inch, 4*vg.Inch, *pngPath); err != nil {
		log.Fatalf("Failed to save plot: %v", err)
	}
	log.Printf("Wrote %s", *pngPath)
}
