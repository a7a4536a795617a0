package format

import (
	"strings"

	"github.com/fatih/color"

	"github.com/olusolaa/hutchlog/internal/level"
	"github.com/olusolaa/hutchlog/internal/record"
)

// ColoredFormatter is a DefaultFormatter that colours the levelname field by
// severity. Padding around the level name stays uncoloured so column widths
// are unchanged.
type ColoredFormatter struct {
	*DefaultFormatter
	palette []band
}

type band struct {
	min level.Level
	c   *color.Color
}

// NewColored builds a ColoredFormatter. A nil colors follows fatih/color's
// terminal detection; true or false forces colour on or off.
func NewColored(format, datefmt string, colors *bool) (*ColoredFormatter, error) {
	base, err := NewDefault(format, datefmt)
	if err != nil {
		return nil, err
	}
	cf := &ColoredFormatter{
		DefaultFormatter: base,
		palette: []band{
			{min: level.Critical, c: color.New(color.FgRed, color.Bold)},
			{min: level.Error, c: color.New(color.FgRed)},
			{min: level.Warning, c: color.New(color.FgYellow)},
			{min: level.Info, c: color.New(color.FgGreen)},
			{min: level.Debug, c: color.New(color.FgBlue)},
			{min: level.NotSet, c: color.New(color.Faint)},
		},
	}
	if colors != nil {
		for _, b := range cf.palette {
			if *colors {
				b.c.EnableColor()
			} else {
				b.c.DisableColor()
			}
		}
	}
	base.decorate = cf.colorLevel
	return cf, nil
}

func (cf *ColoredFormatter) colorFor(l level.Level) *color.Color {
	for _, b := range cf.palette {
		if l >= b.min {
			return b.c
		}
	}
	return cf.palette[len(cf.palette)-1].c
}

func (cf *ColoredFormatter) colorLevel(key, rendered string, rec *record.Record) string {
	if key != "levelname" {
		return rendered
	}
	text := strings.TrimSpace(rendered)
	if text == "" {
		return rendered
	}
	i := strings.Index(rendered, text)
	return rendered[:i] + cf.colorFor(rec.Level).Sprint(text) + rendered[i+len(text):]
}
