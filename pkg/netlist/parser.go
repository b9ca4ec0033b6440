// Package netlist reads SPICE-like netlists and builds circuit trees from
// them.
package netlist

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/internal/consts"
)

var (
	ErrSyntax      = errors.New("netlist syntax error")
	ErrUnsupported = errors.New("unsupported netlist construct")
)

type AnalysisType int

const (
	AnalysisOP AnalysisType = iota
	AnalysisAC
	AnalysisDC
	AnalysisNoise
	AnalysisLoopGain
)

func (a AnalysisType) String() string {
	switch a {
	case AnalysisOP:
		return "op"
	case AnalysisAC:
		return "ac"
	case AnalysisDC:
		return "dc"
	case AnalysisNoise:
		return "noise"
	case AnalysisLoopGain:
		return "loopgain"
	}
	return "unknown"
}

type SweepParam struct {
	Sweep  string  // DEC, OCT, LIN
	Points int     // points per decade
	FStart float64 // start frequency
	FStop  float64 // stop frequency
}

type NetlistData struct {
	Title    string                // Circuit title
	Elements []Element             // Top level elements
	Nodes    map[string]int        // Top level node name and index
	Subckts  map[string]*Subckt    // Subcircuit definitions by lower-case name
	Models   map[string]ModelParam // Models by lower-case name
	Analysis AnalysisType          // Analysis type
	Temp     float64               // Temperature in Kelvin, 0 when unset
	ACParam  SweepParam
	DCParam  struct {
		Source1    string
		Start1     float64
		Stop1      float64
		Increment1 float64
		Source2    string
		Start2     float64
		Stop2      float64
		Increment2 float64
	}
	NoiseParam struct {
		Output string // output node
		Source string // input source for input-referred noise, optional
		SweepParam
	}
	LoopGainParam struct {
		Target string    // instance path of the controlled source
		Port   [4]string // inp, inn, outp, outn as named by the target
		Swept  bool      // sweep over frequency
		SweepParam
	}
}

type Element struct {
	Type   string            // Part type (R, L, C, V, etc.)
	Name   string            // Part name
	Nodes  []string          // Node names
	Value  float64           // Part value
	Symbol string            // Symbolic value name, written {name}
	Params map[string]string // Parameter values
}

// Subckt is a .subckt definition.
type Subckt struct {
	Name     string
	Ports    []string
	Elements []Element
}

type ModelParam struct {
	Type   string
	Name   string
	Params map[string]float64
}

var unitMap = map[string]float64{
	"T":   1e12,  // tera
	"G":   1e9,   // giga
	"meg": 1e6,   // mega
	"K":   1e3,   // kilo
	"k":   1e3,   // kilo
	"m":   1e-3,  // milli
	"u":   1e-6,  // micro
	"n":   1e-9,  // nano
	"p":   1e-12, // pico
	"f":   1e-15, // femto
}

var (
	valueRe  = regexp.MustCompile(`^([-+]?\d*\.?\d+(?:[eE][-+]?\d+)?)(meg|[TGMKkmunpf])?s?$`)
	spacesRe = regexp.MustCompile(`\s+`)
)

type parser struct {
	data    *NetlistData
	current *Subckt // open .subckt, nil at top level
	lineNo  int
}

func Parse(input string) (*NetlistData, error) {
	scanner := bufio.NewScanner(strings.NewReader(input))
	p := &parser{data: &NetlistData{
		Nodes:   make(map[string]int),
		Subckts: make(map[string]*Subckt),
		Models:  make(map[string]ModelParam),
	}}
	p.data.LoopGainParam.Port = [4]string{"inp", "inn", "outp", "outn"}

	// Title or comment
	if scanner.Scan() {
		p.lineNo++
		p.data.Title = strings.TrimPrefix(scanner.Text(), "*")
		p.data.Title = strings.TrimSpace(p.data.Title)
	}

	var currentLine string
	var startLine int
	flush := func() error {
		if currentLine == "" {
			return nil
		}
		err := p.parseLine(currentLine)
		currentLine = ""
		return errors.Wrapf(err, "line %d", startLine)
	}

	for scanner.Scan() {
		p.lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Full comment line
		if strings.HasPrefix(line, "*") || len(line) == 0 {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}

		// Inline comment
		if idx := strings.Index(line, ";"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
			if len(line) == 0 {
				continue
			}
		}

		// Line continue
		if strings.HasPrefix(line, "+") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "+"))
			if currentLine != "" {
				currentLine += " " + line
			}
			continue
		}

		if err := flush(); err != nil {
			return nil, err
		}
		currentLine = line
		startLine = p.lineNo
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading netlist")
	}

	if p.current != nil {
		return nil, errors.Wrapf(ErrSyntax, "subcircuit %s is missing .ends", p.current.Name)
	}
	return p.data, nil
}

func (p *parser) parseLine(line string) error {
	line = spacesRe.ReplaceAllString(line, " ")

	if strings.HasPrefix(line, ".") {
		return p.parseDotOperator(line)
	}

	element, err := parseElement(line)
	if err != nil {
		return err
	}

	if p.current != nil {
		p.current.Elements = append(p.current.Elements, *element)
		return nil
	}

	p.data.Elements = append(p.data.Elements, *element)
	for _, node := range element.Nodes {
		if _, exists := p.data.Nodes[node]; !exists {
			p.data.Nodes[node] = len(p.data.Nodes)
		}
	}
	return nil
}

// Parse .op, .ac, .dc, .noise, .loopgain, .temp, .model, .subckt
func (p *parser) parseDotOperator(line string) error {
	var err error

	fields := strings.Fields(line)
	nd := p.data

	switch strings.ToLower(fields[0]) {
	case ".subckt":
		if p.current != nil {
			return errors.Wrapf(ErrUnsupported, "nested .subckt inside %s", p.current.Name)
		}
		if len(fields) < 3 {
			return errors.Wrap(ErrSyntax, ".subckt needs a name and at least one port")
		}
		key := strings.ToLower(fields[1])
		if _, exists := nd.Subckts[key]; exists {
			return errors.Wrapf(ErrSyntax, "subcircuit %s defined twice", fields[1])
		}
		p.current = &Subckt{Name: fields[1], Ports: fields[2:]}
		nd.Subckts[key] = p.current
		return nil

	case ".ends":
		if p.current == nil {
			return errors.Wrap(ErrSyntax, ".ends without .subckt")
		}
		p.current = nil
		return nil

	case ".end":
		return nil
	}

	if p.current != nil {
		return errors.Wrapf(ErrUnsupported, "%s inside subcircuit %s", fields[0], p.current.Name)
	}

	switch strings.ToLower(fields[0]) {
	case ".model":
		return parseModel(nd, fields[1:])

	case ".op":
		nd.Analysis = AnalysisOP

	case ".temp":
		if len(fields) < 2 {
			return errors.Wrap(ErrSyntax, "missing .temp value")
		}
		celsius, err := ParseValue(fields[1])
		if err != nil {
			return errors.Wrap(err, "invalid temperature")
		}
		nd.Temp = celsius + consts.KELVIN

	case ".ac":
		nd.Analysis = AnalysisAC
		if len(fields) < 5 {
			return errors.Wrap(ErrSyntax, "insufficient AC parameters, need sweep type, points, fstart, and fstop")
		}
		if nd.ACParam, err = parseSweep(fields[1:5]); err != nil {
			return err
		}

	case ".dc":
		nd.Analysis = AnalysisDC
		if len(fields) != 5 && len(fields) != 9 {
			return errors.Wrap(ErrSyntax, "insufficient DC sweep parameters")
		}

		// First source sweep
		dc := &nd.DCParam
		dc.Source1 = fields[1]
		if dc.Start1, dc.Stop1, dc.Increment1, err = parseRange(fields[2:5]); err != nil {
			return err
		}

		// Second source sweep
		if len(fields) == 9 {
			dc.Source2 = fields[5]
			if dc.Start2, dc.Stop2, dc.Increment2, err = parseRange(fields[6:9]); err != nil {
				return err
			}
		}

	case ".noise":
		// .noise v(out) [source] dec 10 1 1meg
		nd.Analysis = AnalysisNoise
		if len(fields) != 6 && len(fields) != 7 {
			return errors.Wrap(ErrSyntax, ".noise needs an output, an optional source and a sweep")
		}
		out := fields[1]
		lower := strings.ToLower(out)
		if strings.HasPrefix(lower, "v(") && strings.HasSuffix(out, ")") {
			out = out[2 : len(out)-1]
		}
		nd.NoiseParam.Output = out
		rest := fields[2:]
		if len(fields) == 7 {
			nd.NoiseParam.Source = fields[2]
			rest = fields[3:]
		}
		if nd.NoiseParam.SweepParam, err = parseSweep(rest); err != nil {
			return err
		}

	case ".loopgain":
		// .loopgain target [inp inn outp outn] [dec 10 1 1meg]
		nd.Analysis = AnalysisLoopGain
		lg := &nd.LoopGainParam
		if len(fields) < 2 {
			return errors.Wrap(ErrSyntax, ".loopgain needs a target instance")
		}
		lg.Target = fields[1]
		rest := fields[2:]
		if len(rest) >= 4 && !isSweepType(rest[0]) {
			copy(lg.Port[:], rest[:4])
			rest = rest[4:]
		}
		switch len(rest) {
		case 0:
		case 4:
			if lg.SweepParam, err = parseSweep(rest); err != nil {
				return err
			}
			lg.Swept = true
		default:
			return errors.Wrapf(ErrSyntax, "unexpected .loopgain arguments %v", rest)
		}

	case ".tran":
		return errors.Wrap(ErrUnsupported, "transient analysis")

	default:
		return errors.Wrapf(ErrUnsupported, "analysis type %s", fields[0])
	}

	return nil
}

func isSweepType(s string) bool {
	switch strings.ToUpper(s) {
	case "DEC", "OCT", "LIN":
		return true
	}
	return false
}

// parseSweep reads "type points fstart fstop".
func parseSweep(fields []string) (SweepParam, error) {
	var sp SweepParam
	var err error

	// DEC, OCT, LIN
	sp.Sweep = strings.ToUpper(fields[0])
	if !isSweepType(sp.Sweep) {
		return sp, errors.Wrapf(ErrSyntax, "invalid sweep type: %s", fields[0])
	}

	sp.Points, err = strconv.Atoi(fields[1])
	if err != nil {
		return sp, errors.Wrap(err, "invalid points number")
	}
	sp.FStart, err = ParseValue(fields[2])
	if err != nil {
		return sp, errors.Wrap(err, "invalid fstart")
	}
	sp.FStop, err = ParseValue(fields[3])
	if err != nil {
		return sp, errors.Wrap(err, "invalid fstop")
	}
	return sp, nil
}

func parseRange(fields []string) (start, stop, increment float64, err error) {
	if start, err = ParseValue(fields[0]); err != nil {
		return 0, 0, 0, errors.Wrap(err, "invalid start value")
	}
	if stop, err = ParseValue(fields[1]); err != nil {
		return 0, 0, 0, errors.Wrap(err, "invalid stop value")
	}
	if increment, err = ParseValue(fields[2]); err != nil {
		return 0, 0, 0, errors.Wrap(err, "invalid increment value")
	}
	return start, stop, increment, nil
}

func parseModel(nd *NetlistData, fields []string) error {
	if len(fields) < 2 {
		return errors.Wrap(ErrSyntax, "insufficient model parameters")
	}

	modelName := fields[0]

	// Split the type from an opening parenthesis
	typeField, rest, _ := strings.Cut(fields[1], "(")
	modelType := strings.ToUpper(typeField)

	var params map[string]float64
	switch modelType {
	case "D":
		params = map[string]float64{
			"is": 1e-14, // Saturation current
			"n":  1.0,   // Emission coefficient
		}
	case "NPN":
		params = map[string]float64{"polarity": 1}
	case "PNP":
		params = map[string]float64{"polarity": -1}
	default:
		return errors.Wrapf(ErrUnsupported, "model type %s", modelType)
	}

	paramStr := strings.Join(append([]string{rest}, fields[2:]...), " ")
	paramStr = strings.Trim(paramStr, "() ")

	for _, pair := range strings.Fields(paramStr) {
		name, val, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		paramName := strings.ToLower(strings.TrimSpace(name))
		value, err := ParseValue(strings.TrimSpace(val))
		if err != nil {
			return errors.Wrapf(err, "invalid parameter value %s", pair)
		}
		params[paramName] = value
	}

	nd.Models[strings.ToLower(modelName)] = ModelParam{
		Type:   modelType,
		Name:   modelName,
		Params: params,
	}

	return nil
}

// Parse circuit element
func parseElement(line string) (*Element, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, errors.Wrapf(ErrSyntax, "invalid element format: %s", line)
	}

	elem := &Element{
		Name:   fields[0],
		Type:   strings.ToUpper(string(fields[0][0])),
		Params: make(map[string]string),
	}

	switch elem.Type {
	case "V", "I":
		return parseSource(elem, fields)

	case "R", "C", "L":
		// name n+ n- value [key=value ...]
		if len(fields) < 4 {
			return nil, errors.Wrapf(ErrSyntax, "%s needs two nodes and a value", elem.Name)
		}
		elem.Nodes = fields[1:3]
		if err := elem.setValue(fields[3]); err != nil {
			return nil, err
		}
		if err := elem.setParams(fields[4:]); err != nil {
			return nil, err
		}
		return elem, nil

	case "E", "G":
		// name out+ out- in+ in- value
		if len(fields) != 6 {
			return nil, errors.Wrapf(ErrSyntax, "%s needs four nodes and a gain", elem.Name)
		}
		elem.Nodes = fields[1:5]
		if err := elem.setValue(fields[5]); err != nil {
			return nil, err
		}
		return elem, nil

	case "K": // Mutual inductance
		if len(fields) != 4 {
			return nil, errors.Wrapf(ErrSyntax, "%s needs two inductors and a coupling coefficient", elem.Name)
		}

		coefficient, err := ParseValue(fields[3])
		if err != nil {
			return nil, errors.Wrap(err, "invalid coupling coefficient")
		}
		if coefficient < -1 || coefficient > 1 {
			return nil, errors.Wrapf(ErrSyntax, "coupling coefficient must be between -1 and 1: %g", coefficient)
		}

		elem.Params["ind1"] = fields[1]
		elem.Params["ind2"] = fields[2]
		elem.Value = coefficient
		return elem, nil

	case "D":
		elem.Nodes = fields[1:3]
		if len(fields) > 3 {
			elem.Params["model"] = fields[3]
		}
		return elem, nil

	case "Q":
		// name c b e model
		if len(fields) != 5 {
			return nil, errors.Wrapf(ErrSyntax, "%s needs collector, base, emitter and a model", elem.Name)
		}
		elem.Nodes = fields[1:4]
		elem.Params["model"] = fields[4]
		return elem, nil

	case "X":
		// name nodes... subckt
		elem.Nodes = fields[1 : len(fields)-1]
		elem.Params["subckt"] = fields[len(fields)-1]
		return elem, nil
	}

	return nil, errors.Wrapf(ErrUnsupported, "element %s", elem.Name)
}

func parseSource(elem *Element, fields []string) (*Element, error) {
	if len(fields) < 4 {
		return nil, errors.Wrapf(ErrSyntax, "insufficient source parameters for %s", elem.Name)
	}
	elem.Nodes = []string{fields[1], fields[2]}

	remaining := strings.Join(fields[3:], " ")
	remaining = strings.ReplaceAll(remaining, "(", " ( ") // Append whitespace around parentheses
	remaining = strings.ReplaceAll(remaining, ")", " ) ")
	words := strings.Fields(remaining)

	switch strings.ToUpper(words[0]) {
	case "DC", "AC":
		if len(words) < 2 {
			return nil, errors.Wrapf(ErrSyntax, "missing %s value", words[0])
		}
		elem.Params["type"] = strings.ToLower(words[0])
		if err := elem.setValue(words[1]); err != nil {
			return nil, err
		}

	case "SIN", "PULSE", "PWL":
		return nil, errors.Wrapf(ErrUnsupported, "%s source %s", words[0], elem.Name)

	default:
		elem.Params["type"] = "dc"
		if err := elem.setValue(words[0]); err != nil {
			return nil, err
		}
	}

	return elem, nil
}

// setValue accepts a number with an optional factor or a {symbol}.
func (e *Element) setValue(s string) error {
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2 {
		e.Symbol = s[1 : len(s)-1]
		return nil
	}
	v, err := ParseValue(s)
	if err != nil {
		return errors.Wrapf(err, "value of %s", e.Name)
	}
	e.Value = v
	return nil
}

func (e *Element) setParams(fields []string) error {
	for _, f := range fields {
		name, val, ok := strings.Cut(f, "=")
		if !ok {
			return errors.Wrapf(ErrSyntax, "parameter %q of %s is not name=value", f, e.Name)
		}
		e.Params[strings.ToLower(name)] = val
	}
	return nil
}

// ParseValue - Parse value and factor. 1k -> 1000
func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, errors.Wrapf(ErrSyntax, "invalid value format: %s", val)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}

	// factor
	if len(matches) > 2 && matches[2] != "" {
		if multiplier, ok := unitMap[matches[2]]; ok {
			num *= multiplier
		}
	}

	return num, nil
}
