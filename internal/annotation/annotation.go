// Package annotation applies normalized scores to HTML elements and checks
// that an annotated page is well formed.
package annotation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/okian/critreview/internal/domain/intensity"
)

// Kind names what a scored element describes.
type Kind string

const (
	Course Kind = "course"
	Prof   Kind = "prof"
)

const (
	// ClassScored marks every annotated element.
	ClassScored = "scored"

	// AttrScore holds the normalized intensity in [0, 1].
	AttrScore = "data-score"
)

// Class returns the kind-specific class, e.g. "scored--course".
func (k Kind) Class() string { return ClassScored + "--" + string(k) }

func (k Kind) valid() bool { return k == Course || k == Prof }

// Apply annotates every element in sel with raw. The title carries the raw
// score unrounded, data-score its intensity and the inline color the ramp
// color for that intensity. Other inline style declarations are kept.
func Apply(sel *goquery.Selection, kind Kind, raw float64) error {
	if !kind.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	i, err := intensity.Normalize(raw)
	if err != nil {
		return err
	}
	c := intensity.Color(i)
	sel.AddClass(ClassScored, kind.Class()).
		SetAttr("title", strconv.FormatFloat(raw, 'f', -1, 64)).
		SetAttr(AttrScore, strconv.FormatFloat(i, 'f', -1, 64))
	sel.Each(func(_ int, s *goquery.Selection) {
		s.SetAttr("style", withColor(s.AttrOr("style", ""), c))
	})
	return nil
}

// Violation describes one malformed scored element.
type Violation struct {
	Kind   Kind
	Index  int
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s #%d: %s", v.Kind, v.Index, v.Reason)
}

// Report summarizes a Verify pass.
type Report struct {
	Courses    int
	Profs      int
	Violations []Violation
}

// Verify checks every course and prof element in doc. It fails with
// ErrNoScoredElements when there is nothing to check and with
// ErrInvalidAnnotation when any element is malformed; the report is
// returned in both cases.
func Verify(doc *goquery.Document) (Report, error) {
	var rep Report
	for _, kind := range []Kind{Course, Prof} {
		doc.Find("." + kind.Class()).Each(func(idx int, s *goquery.Selection) {
			if kind == Course {
				rep.Courses++
			} else {
				rep.Profs++
			}
			for _, reason := range check(s) {
				rep.Violations = append(rep.Violations, Violation{Kind: kind, Index: idx, Reason: reason})
			}
		})
	}

	if rep.Courses+rep.Profs == 0 {
		return rep, ErrNoScoredElements
	}
	if len(rep.Violations) > 0 {
		return rep, fmt.Errorf("%w: %d of %d elements", ErrInvalidAnnotation, len(rep.Violations), rep.Courses+rep.Profs)
	}
	return rep, nil
}

func check(s *goquery.Selection) []string {
	var reasons []string

	if !inRange(s.AttrOr("title", ""), intensity.MinRaw, intensity.MaxRaw) {
		reasons = append(reasons, fmt.Sprintf("title %q not in [%v, %v]", s.AttrOr("title", ""), intensity.MinRaw, intensity.MaxRaw))
	}
	if !inRange(s.AttrOr(AttrScore, ""), intensity.MinIntensity, intensity.MaxIntensity) {
		reasons = append(reasons, fmt.Sprintf("%s %q not in [%v, %v]", AttrScore, s.AttrOr(AttrScore, ""), intensity.MinIntensity, intensity.MaxIntensity))
	}
	decl := color(s.AttrOr("style", ""))
	c, ok := parseColor(decl)
	switch {
	case decl == "":
		reasons = append(reasons, "no color set")
	case !ok:
		reasons = append(reasons, fmt.Sprintf("color %q not recognized", decl))
	case c.equal(unscored):
		reasons = append(reasons, fmt.Sprintf("color %q is the unscored default", decl))
	}
	return reasons
}

var unscored, _ = parseColor(intensity.UnscoredColor)

func inRange(v string, lo, hi float64) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return err == nil && f >= lo && f <= hi
}

// color extracts the effective (last) color declaration from an inline style.
func color(style string) string {
	var val string
	for _, decl := range strings.Split(style, ";") {
		prop, v, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(prop), "color") {
			val = strings.TrimSpace(v)
		}
	}
	return val
}
