package inference

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Vocabulary is the lexicon the extractive reader is built from.
type Vocabulary struct {
	TypeBonus   float64      `yaml:"type_bonus"`
	Stopwords   []string     `yaml:"stopwords"`
	AnswerTypes []AnswerType `yaml:"answer_types"`
}

// AnswerType describes one kind of expected answer. Exactly one of Terms or Pattern is used to
// find candidates; Terms wins when both are set.
type AnswerType struct {
	Name    string   `yaml:"name"`
	Cues    []string `yaml:"cues"`
	Terms   []string `yaml:"terms"`
	Pattern string   `yaml:"pattern"`
}

// ExtractiveLoader builds a lexical reader from a YAML vocabulary. An empty path uses the
// embedded default.
type ExtractiveLoader struct {
	path string
}

func NewExtractiveLoader(vocabularyPath string) *ExtractiveLoader {
	return &ExtractiveLoader{path: vocabularyPath}
}

func (l *ExtractiveLoader) Name() string { return "extractive" }

func (l *ExtractiveLoader) Load(ctx context.Context) (Model, error) {
	data := defaultVocabulary
	if l.path != "" {
		raw, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("read vocabulary: %w", err)
		}
		data = raw
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ParseVocabulary(data)
}

// ParseVocabulary compiles a YAML vocabulary into a ready model.
func ParseVocabulary(data []byte) (Model, error) {
	var vocab Vocabulary
	if err := yaml.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	return compileVocabulary(vocab)
}

type compiledType struct {
	name    string
	cues    [][]string
	terms   [][]string
	pattern *regexp.Regexp
}

type extractiveModel struct {
	bonus float64
	stop  map[string]bool
	types []compiledType
}

func compileVocabulary(vocab Vocabulary) (*extractiveModel, error) {
	if len(vocab.Stopwords) == 0 {
		return nil, fmt.Errorf("vocabulary has no stopwords")
	}

	m := &extractiveModel{
		bonus: vocab.TypeBonus,
		stop:  make(map[string]bool, len(vocab.Stopwords)),
	}
	if m.bonus <= 0 {
		m.bonus = 2.0
	}
	for _, w := range vocab.Stopwords {
		m.stop[strings.ToLower(strings.TrimSpace(w))] = true
	}

	for i, at := range vocab.AnswerTypes {
		if at.Name == "" {
			return nil, fmt.Errorf("answer_types[%d]: name is required", i)
		}
		if len(at.Cues) == 0 {
			return nil, fmt.Errorf("answer type %q has no cues", at.Name)
		}
		ct := compiledType{name: at.Name}
		for _, cue := range at.Cues {
			if ws := words(cue); len(ws) > 0 {
				ct.cues = append(ct.cues, ws)
			}
		}
		for _, term := range at.Terms {
			if ws := words(term); len(ws) > 0 {
				ct.terms = append(ct.terms, ws)
			}
		}
		if len(ct.terms) == 0 {
			if at.Pattern == "" {
				return nil, fmt.Errorf("answer type %q needs terms or a pattern", at.Name)
			}
			re, err := regexp.Compile(at.Pattern)
			if err != nil {
				return nil, fmt.Errorf("answer type %q: %w", at.Name, err)
			}
			ct.pattern = re
		}
		m.types = append(m.types, ct)
	}
	return m, nil
}

type token struct {
	text       string
	start, end int
}

type sentence struct {
	start, end int
	tokens     []token
}

type span struct {
	start, end int
}

func (m *extractiveModel) Predict(ctx context.Context, question, passage string) (Prediction, error) {
	none := Prediction{Start: -1, End: -1}
	if strings.TrimSpace(question) == "" || strings.TrimSpace(passage) == "" {
		return none, nil
	}
	if err := ctx.Err(); err != nil {
		return none, err
	}

	sents := splitSentences(passage)
	if len(sents) == 0 {
		return none, nil
	}

	qWords := words(question)
	qTerms := m.contentTerms(qWords)
	atype := m.answerType(qWords)

	scores := make([]float64, len(sents))
	n := float64(len(sents))
	for _, term := range qTerms {
		hits := make([]bool, len(sents))
		df := 0
		for i, s := range sents {
			if containsTerm(s.tokens, term) {
				hits[i] = true
				df++
			}
		}
		if df == 0 {
			continue
		}
		idf := math.Log(1 + n/float64(1+df))
		for i, hit := range hits {
			if hit {
				scores[i] += idf
			}
		}
	}

	candidates := make([]*span, len(sents))
	if atype != nil {
		for i, s := range sents {
			if c := m.candidate(atype, passage, s, qWords); c != nil {
				candidates[i] = c
				scores[i] += m.bonus
			}
		}
	}

	best := 0
	for i := range scores {
		if scores[i] > scores[best] {
			best = i
		}
	}

	pred := Prediction{Score: softmax(scores)[best] * m.coverage(sents[best], qTerms, atype, candidates[best] != nil)}
	if c := candidates[best]; c != nil {
		pred.Start, pred.End = c.start, c.end
	} else {
		pred.Start, pred.End = sents[best].start, sents[best].end
	}
	pred.Answer = passage[pred.Start:pred.End]
	return pred, nil
}

// coverage is the share of the question's evidence found in s: its content terms plus, when the
// question asks for an answer type, a span of that type. A question with no evidence to match
// covers nothing.
func (m *extractiveModel) coverage(s sentence, qTerms []string, atype *compiledType, typed bool) float64 {
	slots, matched := len(qTerms), 0
	for _, term := range qTerms {
		if containsTerm(s.tokens, term) {
			matched++
		}
	}
	if atype != nil {
		slots++
		if typed {
			matched++
		}
	}
	if slots == 0 {
		return 0
	}
	return float64(matched) / float64(slots)
}

// contentTerms keeps the distinct non-stopword question words in order.
func (m *extractiveModel) contentTerms(qWords []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range qWords {
		if m.stop[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func (m *extractiveModel) answerType(qWords []string) *compiledType {
	for i := range m.types {
		for _, cue := range m.types[i].cues {
			if indexWords(qWords, cue) >= 0 {
				return &m.types[i]
			}
		}
	}
	return nil
}

// candidate finds the answer-type span in s. For term types an occurrence preceded by a
// lowercase modifier ("theoretical physics") is preferred over a bare one.
func (m *extractiveModel) candidate(at *compiledType, passage string, s sentence, qWords []string) *span {
	if at.pattern != nil {
		for _, loc := range at.pattern.FindAllStringIndex(passage[s.start:s.end], -1) {
			text := strings.ToLower(passage[s.start+loc[0] : s.start+loc[1]])
			if indexWords(qWords, words(text)) >= 0 {
				continue
			}
			return &span{start: s.start + loc[0], end: s.start + loc[1]}
		}
		return nil
	}

	var first *span
	texts := tokenTexts(s.tokens)
	for _, term := range at.terms {
		if indexWords(qWords, term) >= 0 {
			continue
		}
		for i := 0; i+len(term) <= len(texts); i++ {
			if !equalWords(texts[i:i+len(term)], term) {
				continue
			}
			occ := span{start: s.tokens[i].start, end: s.tokens[i+len(term)-1].end}
			if i > 0 && m.isModifier(passage, s.tokens[i-1], occ.start) {
				return &span{start: s.tokens[i-1].start, end: occ.end}
			}
			if first == nil || occ.start < first.start {
				o := occ
				first = &o
			}
		}
	}
	return first
}

func (m *extractiveModel) isModifier(passage string, tok token, next int) bool {
	if m.stop[tok.text] || passage[tok.end:next] != " " {
		return false
	}
	r, _ := utf8.DecodeRuneInString(passage[tok.start:])
	return unicode.IsLower(r)
}

func softmax(scores []float64) []float64 {
	top := scores[0]
	for _, s := range scores[1:] {
		if s > top {
			top = s
		}
	}
	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp(s - top)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func containsTerm(tokens []token, term string) bool {
	for _, t := range tokens {
		if similarWords(t.text, term) {
			return true
		}
	}
	return false
}

// similarWords matches equal words and words sharing a long common prefix
// ("relativity"/"relativistic").
func similarWords(a, b string) bool {
	if a == b {
		return true
	}
	ar, br := []rune(a), []rune(b)
	shorter := len(ar)
	if len(br) < shorter {
		shorter = len(br)
	}
	p := 0
	for p < shorter && ar[p] == br[p] {
		p++
	}
	return p >= 5 && float64(p) >= 0.75*float64(shorter)
}

func indexWords(haystack, needle []string) int {
	if len(needle) == 0 {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if equalWords(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func equalWords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func tokenTexts(tokens []token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.text
	}
	return out
}

func words(s string) []string {
	return tokenTexts(tokenize(s, 0, len(s)))
}

// tokenize returns lowercase letter/digit runs of s[from:to] with byte offsets into s.
func tokenize(s string, from, to int) []token {
	var out []token
	start := -1
	for i, r := range s[from:to] {
		pos := from + i
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = pos
			}
			continue
		}
		if start >= 0 {
			out = append(out, token{text: strings.ToLower(s[start:pos]), start: start, end: pos})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, token{text: strings.ToLower(s[start:to]), start: start, end: to})
	}
	return out
}

// splitSentences breaks text at newlines and at terminal punctuation followed by whitespace and
// a capital, digit or quote.
func splitSentences(text string) []sentence {
	var out []sentence
	begin := 0

	emit := func(end int) {
		start, stop := begin, end
		for start < stop {
			r, size := utf8.DecodeRuneInString(text[start:])
			if !unicode.IsSpace(r) {
				break
			}
			start += size
		}
		for stop > start {
			r, size := utf8.DecodeLastRuneInString(text[:stop])
			if !unicode.IsSpace(r) {
				break
			}
			stop -= size
		}
		if stop > start {
			if toks := tokenize(text, start, stop); len(toks) > 0 {
				out = append(out, sentence{start: start, end: stop, tokens: toks})
			}
		}
		begin = end
	}

	for i, r := range text {
		switch r {
		case '\n':
			emit(i + 1)
		case '.', '!', '?':
			if boundaryAfter(text, i+1) {
				emit(i + 1)
			}
		}
	}
	emit(len(text))
	return out
}

func boundaryAfter(text string, pos int) bool {
	if pos >= len(text) {
		return true
	}
	r, size := utf8.DecodeRuneInString(text[pos:])
	if !unicode.IsSpace(r) {
		return false
	}
	for pos += size; pos < len(text); pos += size {
		r, size = utf8.DecodeRuneInString(text[pos:])
		if unicode.IsSpace(r) {
			continue
		}
		return unicode.IsUpper(r) || unicode.IsDigit(r) || r == '"' || r == '\'' || r == '('
	}
	return true
}
