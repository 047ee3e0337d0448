package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/stargazer/internal/session"
	"git.home.luguber.info/inful/stargazer/internal/state"
)

var titleCase = cases.Title(language.English)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSnapshot renders the session the way a person reads a sky report.
func printSnapshot(w io.Writer, snap session.Snapshot, observed []string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	timeLabel := snap.TimeISO
	if timeLabel == "" {
		timeLabel = "now"
	}
	_, _ = fmt.Fprintf(tw, "Location:\t%s\n", snap.Coordinates)
	_, _ = fmt.Fprintf(tw, "Twilight:\t%s\n", titleCase.String(string(snap.Twilight)))
	_, _ = fmt.Fprintf(tw, "Time:\t%s\n", timeLabel)
	switch {
	case snap.Loading:
		_, _ = fmt.Fprintf(tw, "Status:\tloading\n")
	case snap.Error != "":
		_, _ = fmt.Fprintf(tw, "Status:\terror: %s\n", snap.Error)
	default:
		_, _ = fmt.Fprintf(tw, "Status:\tok\n")
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	data := snap.VisibleData
	if data == nil {
		return nil
	}
	if data.SunAltitudeDeg != nil {
		_, _ = fmt.Fprintf(w, "Sun altitude: %.1f°\n", *data.SunAltitudeDeg)
	}

	_, _ = fmt.Fprintf(w, "\nVisible planets (%d)\n", len(data.VisiblePlanets))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range data.VisiblePlanets {
		_, _ = fmt.Fprintf(tw, "  %s\tAlt %.1f°\tAz %.0f°\n", titleCase.String(p.Name), p.AltitudeDeg, p.AzimuthDeg)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if m := data.Moon; m != nil {
		_, _ = fmt.Fprintf(w, "\nMoon  Alt %.1f° · Az %.0f° · %d%% illuminated\n",
			m.AltitudeDeg, m.AzimuthDeg, int(math.Round(m.IlluminationFraction*100)))
	}

	if len(data.Constellations) == 0 {
		return nil
	}
	_, _ = fmt.Fprintf(w, "\nConstellations (%d)\n", len(data.Constellations))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range data.Constellations {
		mark := ""
		if slices.Contains(observed, c.ID) {
			mark = "✓ observed"
		}
		_, _ = fmt.Fprintf(tw, "  %s (%s)\tAlt %.1f° · Az %.0f°\tMag %.1f\t%s\n",
			c.Name, c.Abbreviation, c.AltitudeDeg, c.AzimuthDeg, c.Magnitude, mark)
	}
	return tw.Flush()
}

func printFavorites(w io.Writer, favs []state.Favorite) error {
	if len(favs) == 0 {
		_, _ = fmt.Fprintln(w, "No saved views.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tLOCATION\tTWILIGHT")
	for _, f := range favs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%.2f, %.2f\t%s\n", f.ID, f.Name, f.Lat, f.Lon, f.Twilight)
	}
	return tw.Flush()
}
