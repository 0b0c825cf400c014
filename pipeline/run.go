package pipeline

import (
	"math"
	"strings"

	"github.com/crosstab/crosstab-go/common"
	"github.com/crosstab/crosstab-go/dataset"
	"github.com/crosstab/crosstab-go/inputs"
	"github.com/crosstab/crosstab-go/templating"
)

type dimension struct {
	name   string
	column int
	levels []interface{}
}

// domain is the full key space of a chart over one asset.
type domain struct {
	categories []interface{}
	series     []interface{}
	bins       *binning
}

type cell struct {
	n     int
	count float64
	sumY  float64
	nY    int
	sumWY float64
	sumW  float64
}

func (p *Pipeline) add(c *cell, row []interface{}) {
	w := 1.0
	if p.weight >= 0 {
		w, _ = common.ToFloat(row[p.weight])
	}
	c.n++
	c.count += w
	if p.y < 0 {
		return
	}
	y, ok := common.ToFloat(row[p.y])
	if !ok {
		return
	}
	c.sumY += y
	c.nY++
	if p.weight >= 0 {
		c.sumWY += y * w
		c.sumW += w
	}
}

func (p *Pipeline) value(c *cell, denominator float64) float64 {
	if c == nil {
		return 0
	}
	switch p.mode {
	case Percent:
		if denominator == 0 {
			return 0
		}
		return c.count / denominator * 100
	case Mean:
		if c.nY == 0 {
			return 0
		}
		return c.sumY / float64(c.nY)
	case Sum:
		return c.sumY
	case Weighted:
		if c.sumW == 0 {
			return 0
		}
		return c.sumWY / c.sumW
	}
	return c.count
}

// Run filters the asset by the live inputs, groups and aggregates it.
// No matching rows yields no filtered series; toggle series read the
// whole asset and are still emitted.
func (p *Pipeline) Run(state inputs.State, asset *dataset.Asset) SeriesData {
	out := SeriesData{ChartID: p.binding.ChartID, Series: []Series{}}
	if asset == nil {
		return out
	}

	dom := p.domain(asset)
	if rows := applyFilters(asset.Rows, p.filters, state); len(rows) > 0 {
		if p.mode == None {
			out.Series = p.passThrough(rows, dom)
		} else {
			out.Series = p.aggregate(rows, dom, p.series != nil)
		}
	}

	for _, t := range p.toggles {
		if !toggled(state[t.Input]) {
			continue
		}
		var series []Series
		if p.mode == None {
			series = p.passThrough(asset.Rows, &domain{categories: dom.categories, bins: dom.bins})
		} else {
			series = p.aggregate(asset.Rows, dom, false)
		}
		for _, s := range series {
			s.Name = t.Name
			out.Series = append(out.Series, s)
		}
	}
	return out
}

func toggled(v interface{}) bool {
	if items, ok := common.ToSlice(v); ok {
		return len(items) > 0
	}
	return common.ToBool(v)
}

func (p *Pipeline) domain(asset *dataset.Asset) *domain {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.domains[asset.ID]; ok && asset.ID != "" {
		return d
	}

	d := &domain{}
	if p.category != nil {
		values := asset.Distinct(p.category.name)
		if p.kind.numericX {
			d.bins = newBinning(values, p.binding.Bins)
			d.categories = d.bins.keys()
		} else {
			d.categories = common.OrderByLevels(values, p.category.levels)
		}
	}
	if p.series != nil {
		d.series = common.OrderByLevels(asset.Distinct(p.series.name), p.series.levels)
	}
	if asset.ID != "" {
		p.domains[asset.ID] = d
	}
	return d
}

func (p *Pipeline) categoryOf(row []interface{}, dom *domain) (interface{}, bool) {
	v := row[p.category.column]
	if v == nil {
		return nil, false
	}
	if dom.bins != nil {
		f, ok := common.ToFloat(v)
		if !ok {
			return nil, false
		}
		return dom.bins.index(f), true
	}
	return v, true
}

func (p *Pipeline) categoryLabel(v interface{}, dom *domain) string {
	if dom.bins != nil {
		if f, ok := common.ToFloat(v); ok {
			return dom.bins.label(int(f))
		}
	}
	return common.Label(v)
}

func (p *Pipeline) seriesName(v interface{}) string {
	if v == nil {
		if p.binding.SeriesName != "" {
			return p.binding.SeriesName
		}
		if p.y >= 0 && (p.mode.NeedsY() || p.mode == None) {
			return p.binding.Column(RoleY)
		}
		return string(p.mode)
	}
	label := common.Label(v)
	if mapped, ok := p.binding.SeriesLabels[common.Key(v)]; ok {
		label = mapped
	}
	if strings.Contains(p.binding.SeriesName, "{") && p.series != nil {
		name, _ := templating.Render(p.binding.SeriesName, templating.Context{
			GroupKeys: map[string]interface{}{p.series.name: label, "series": label},
		})
		return name
	}
	return label
}

func (p *Pipeline) aggregate(rows [][]interface{}, dom *domain, split bool) []Series {
	seriesValues := []interface{}{nil}
	if split {
		seriesValues = dom.series
	}

	cells := make(map[string]map[string]*cell)
	byCategory := make(map[string]float64)
	bySeries := make(map[string]float64)
	var total float64
	for _, row := range rows {
		cat, ok := p.categoryOf(row, dom)
		if !ok {
			continue
		}
		seriesKey := ""
		if split {
			s := row[p.series.column]
			if s == nil {
				continue
			}
			seriesKey = common.Key(s)
		}
		catKey := common.Key(cat)
		if cells[seriesKey] == nil {
			cells[seriesKey] = make(map[string]*cell)
		}
		c := cells[seriesKey][catKey]
		if c == nil {
			c = &cell{}
			cells[seriesKey][catKey] = c
		}
		before := c.count
		p.add(c, row)
		delta := c.count - before
		byCategory[catKey] += delta
		bySeries[seriesKey] += delta
		total += delta
	}

	perCategory := split && p.binding.Column(RoleStack) != ""
	complete := p.binding.Complete()
	out := make([]Series, 0, len(seriesValues))
	for _, s := range seriesValues {
		seriesKey := ""
		if split {
			seriesKey = common.Key(s)
		}
		points := make([]Point, 0, len(dom.categories))
		for _, cat := range dom.categories {
			catKey := common.Key(cat)
			c := cells[seriesKey][catKey]
			if c == nil && !complete {
				continue
			}
			denominator := total
			switch {
			case perCategory:
				denominator = byCategory[catKey]
			case split:
				denominator = bySeries[seriesKey]
			}
			point := Point{Label: p.categoryLabel(cat, dom), Key: catKey, Value: p.value(c, denominator)}
			if c != nil {
				point.Count = c.n
			}
			points = append(points, point)
		}
		if len(points) == 0 {
			continue
		}
		out = append(out, Series{Name: p.seriesName(s), Points: points})
	}
	return out
}

// passThrough emits one point per row for pre-aggregated data.
func (p *Pipeline) passThrough(rows [][]interface{}, dom *domain) []Series {
	bySeries := make(map[string][]Point)
	var order []interface{}
	for _, row := range rows {
		cat, ok := p.categoryOf(row, dom)
		if !ok {
			continue
		}
		seriesKey := ""
		var seriesValue interface{}
		if p.series != nil && dom.series != nil {
			seriesValue = row[p.series.column]
			if seriesValue == nil {
				continue
			}
			seriesKey = common.Key(seriesValue)
		}
		if _, ok := bySeries[seriesKey]; !ok {
			order = append(order, seriesValue)
		}
		value := 1.0
		if p.y >= 0 {
			value, _ = common.ToFloat(row[p.y])
		}
		bySeries[seriesKey] = append(bySeries[seriesKey], Point{
			Label: p.categoryLabel(cat, dom),
			Key:   common.Key(cat),
			Value: value,
			Count: 1,
		})
	}

	if dom.series != nil {
		order = order[:0]
		for _, s := range dom.series {
			if _, ok := bySeries[common.Key(s)]; ok {
				order = append(order, s)
			}
		}
	}
	out := make([]Series, 0, len(order))
	for _, s := range order {
		key := ""
		if s != nil {
			key = common.Key(s)
		}
		out = append(out, Series{Name: p.seriesName(s), Points: bySeries[key]})
	}
	return out
}

// binning splits a numeric range into equal-width bins.
type binning struct {
	min   float64
	width float64
	n     int
}

const defaultBins = 10

func newBinning(values []interface{}, n int) *binning {
	if n <= 0 {
		n = defaultBins
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		f, ok := common.ToFloat(v)
		if !ok {
			continue
		}
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}
	if math.IsInf(lo, 1) {
		return &binning{n: 0}
	}
	return &binning{min: lo, width: (hi - lo) / float64(n), n: n}
}

func (b *binning) keys() []interface{} {
	out := make([]interface{}, b.n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func (b *binning) index(v float64) float64 {
	if b.width == 0 || b.n == 0 {
		return 0
	}
	i := int((v - b.min) / b.width)
	if i >= b.n {
		i = b.n - 1
	}
	if i < 0 {
		i = 0
	}
	return float64(i)
}

func (b *binning) label(i int) string {
	lo := b.min + float64(i)*b.width
	hi := lo + b.width
	return common.Label(roundLabel(lo)) + "-" + common.Label(roundLabel(hi))
}

func roundLabel(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
