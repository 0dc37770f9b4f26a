package retrieval

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/talklens/talklens/store"
)

// Aggregations return counts and summaries over filtered entity sets,
// never raw payloads, so their output stays bounded regardless of how
// many entities match.

// SpeakerActivityRequest filters the talks that feed the per-speaker
// aggregation.
type SpeakerActivityRequest struct {
	SpeakerName  *string
	Company      *string
	Category     *string
	EventName    *string
	DateFrom     *time.Time
	DateTo       *time.Time
	MinTalkCount int
	// Limit caps the reported speaker rows after sorting. Zero means the
	// default of 20.
	Limit int
}

// SpeakerStats aggregates one speaker's talks.
type SpeakerStats struct {
	Speaker    string   `json:"speaker"`
	TalkCount  int      `json:"talkCount"`
	TotalViews int64    `json:"totalViews"`
	AvgViews   float64  `json:"avgViews"`
	Categories []string `json:"categories"`
	Events     []string `json:"events"`
	Companies  []string `json:"companies"`
}

// CompanyCount is one row of the company breakdown.
type CompanyCount struct {
	Company   string `json:"company"`
	TalkCount int    `json:"talkCount"`
}

// SpeakerActivity is the full speaker aggregation payload.
type SpeakerActivity struct {
	Speakers         []SpeakerStats `json:"speakers"`
	RepeatSpeakers   []string       `json:"repeatSpeakers"`
	CompanyBreakdown []CompanyCount `json:"companyBreakdown"`
	TotalTalks       int            `json:"totalTalks"`
	TotalSpeakers    int            `json:"totalSpeakers"`
}

// maxCompanyBreakdown caps the company table.
const maxCompanyBreakdown = 20

// AnalyzeSpeakerActivity groups the filtered talks by speaker name and
// reports talk/view totals. Speakers sort by talk count descending then
// name ascending; the sums equal the number of filtered talks exactly.
func AnalyzeSpeakerActivity(ctx context.Context, st *store.Store, req *SpeakerActivityRequest) (*SpeakerActivity, error) {
	if req == nil {
		req = &SpeakerActivityRequest{}
	}
	find := &store.FindTalk{
		SpeakerName:     req.SpeakerName,
		CompanyName:     req.Company,
		CategoryPrimary: req.Category,
		EventName:       req.EventName,
		PublishedAfter:  req.DateFrom,
		PublishedBefore: req.DateTo,
	}
	talks, err := st.ListTalks(ctx, find)
	if err != nil {
		return nil, err
	}

	type entry struct {
		count      int
		views      int64
		categories map[string]struct{}
		events     map[string]struct{}
		companies  map[string]struct{}
	}
	bySpeaker := map[string]*entry{}
	byCompany := map[string]int{}

	for _, t := range talks {
		name := t.SpeakerName
		if name == "" {
			name = "Unknown"
		}
		e, ok := bySpeaker[name]
		if !ok {
			e = &entry{
				categories: map[string]struct{}{},
				events:     map[string]struct{}{},
				companies:  map[string]struct{}{},
			}
			bySpeaker[name] = e
		}
		e.count++
		e.views += t.Views
		if t.CategoryPrimary != "" {
			e.categories[t.CategoryPrimary] = struct{}{}
		}
		if t.EventName != "" {
			e.events[t.EventName] = struct{}{}
		}
		if t.CompanyName != "" {
			e.companies[t.CompanyName] = struct{}{}
			byCompany[t.CompanyName]++
		}
	}

	activity := &SpeakerActivity{
		TotalTalks:    len(talks),
		TotalSpeakers: len(bySpeaker),
	}
	for name, e := range bySpeaker {
		if e.count < req.MinTalkCount {
			continue
		}
		activity.Speakers = append(activity.Speakers, SpeakerStats{
			Speaker:    name,
			TalkCount:  e.count,
			TotalViews: e.views,
			AvgViews:   math.Round(float64(e.views)/float64(e.count)*10) / 10,
			Categories: sortedKeys(e.categories),
			Events:     sortedKeys(e.events),
			Companies:  sortedKeys(e.companies),
		})
		if e.count >= 2 {
			activity.RepeatSpeakers = append(activity.RepeatSpeakers, name)
		}
	}
	sort.Slice(activity.Speakers, func(i, j int) bool {
		if activity.Speakers[i].TalkCount != activity.Speakers[j].TalkCount {
			return activity.Speakers[i].TalkCount > activity.Speakers[j].TalkCount
		}
		return activity.Speakers[i].Speaker < activity.Speakers[j].Speaker
	})
	sort.Strings(activity.RepeatSpeakers)

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if len(activity.Speakers) > limit {
		activity.Speakers = activity.Speakers[:limit]
	}

	for company, count := range byCompany {
		activity.CompanyBreakdown = append(activity.CompanyBreakdown, CompanyCount{Company: company, TalkCount: count})
	}
	sort.Slice(activity.CompanyBreakdown, func(i, j int) bool {
		if activity.CompanyBreakdown[i].TalkCount != activity.CompanyBreakdown[j].TalkCount {
			return activity.CompanyBreakdown[i].TalkCount > activity.CompanyBreakdown[j].TalkCount
		}
		return activity.CompanyBreakdown[i].Company < activity.CompanyBreakdown[j].Company
	})
	if len(activity.CompanyBreakdown) > maxCompanyBreakdown {
		activity.CompanyBreakdown = activity.CompanyBreakdown[:maxCompanyBreakdown]
	}

	return activity, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Topic analysis -------------------------------------------------------

// TopicAnalysisRequest selects the analysis flavor and the content it
// runs over.
type TopicAnalysisRequest struct {
	// AnalysisType is one of "tools", "technologies", "topics", "trends",
	// "keywords". Trends share the topic pattern bank.
	AnalysisType string
	Category     *string
	EventName    *string
	DateFrom     *time.Time
	DateTo       *time.Time
	// ContentSource is "abstracts" (talk metadata text, default),
	// "transcripts", or "all".
	ContentSource string
	// TimeGrouping buckets the top items by the publish period of the
	// talks that mention them: "yearly", "quarterly", "monthly" or
	// "none" (default).
	TimeGrouping string
	TopN         int
	MinMentions  int
}

// TopicCount is one frequency row. Percentage is relative to the number
// of analyzed text units (words, for keyword analysis).
type TopicCount struct {
	Item       string  `json:"item"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TrendBucket holds the mention counts of the top items within one
// publish period.
type TrendBucket struct {
	Period string       `json:"period"`
	Counts []TopicCount `json:"counts"`
}

// TopicAnalysis is the frequency-table payload.
type TopicAnalysis struct {
	Results        []TopicCount  `json:"results"`
	Trends         []TrendBucket `json:"trends,omitempty"`
	Grouping       string        `json:"grouping,omitempty"`
	TotalItems     int           `json:"totalItems"`
	ChunksAnalyzed int           `json:"chunksAnalyzed"`
	TalksAnalyzed  int           `json:"talksAnalyzed"`
	Summary        string        `json:"summary"`
}

// Pattern banks for the non-keyword analyses. Matches are counted
// case-insensitively and reported lowercase.
var (
	toolPatterns = compileBank(
		`\b(langchain|langgraph|langsmith)\b`,
		`\b(tensorflow|pytorch|keras|scikit-learn|sklearn)\b`,
		`\b(weights & biases|wandb|mlflow|kubeflow)\b`,
		`\b(docker|kubernetes|k8s)\b`,
		`\b(ray|dask|apache spark)\b`,
		`\b(airflow|prefect|dagster)\b`,
		`\b(fastapi|flask|django)\b`,
		`\b(openai|anthropic|cohere)\b`,
		`\b(hugging face|huggingface|transformers)\b`,
		`\b(triton|tensorrt|onnx)\b`,
		`\b(kafka|redis|postgresql|mongodb)\b`,
		`\b(grafana|prometheus|jaeger)\b`,
		`\b(aws|azure|gcp|google cloud)\b`,
		`\b(jupyter|vscode|github)\b`,
	)
	techPatterns = compileBank(
		`\b(machine learning|deep learning|artificial intelligence)\b`,
		`\b(large language model|llm|gpt|bert|transformer)\b`,
		`\b(vector database|vector search|embedding|rag)\b`,
		`\b(microservices|api|rest|graphql)\b`,
		`\b(cloud|edge computing|serverless)\b`,
		`\b(devops|mlops|dataops|ci/cd)\b`,
		`\b(monitoring|observability|logging)\b`,
		`\b(real-time|streaming|batch processing)\b`,
		`\b(computer vision|nlp|natural language processing)\b`,
		`\b(reinforcement learning|supervised learning|unsupervised learning)\b`,
	)
	topicPatterns = compileBank(
		`\b(deployment|production|pipeline|monitoring)\b`,
		`\b(model|training|inference|evaluation)\b`,
		`\b(data|dataset|feature)\b`,
		`\b(agent|agents|memory|reasoning)\b`,
		`\b(vector|embedding|retrieval|search)\b`,
		`\b(scaling|performance|optimization)\b`,
		`\b(governance|compliance|security|privacy)\b`,
		`\b(automation|orchestration|workflow)\b`,
	)
	wordPattern = regexp.MustCompile(`\b[a-z]{3,}\b`)
)

func compileBank(patterns ...string) []*regexp.Regexp {
	bank := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		bank[i] = regexp.MustCompile(p)
	}
	return bank
}

// keywordStopWords suppresses function words and bare qualifiers in
// keyword analysis.
var keywordStopWords = buildStopWords(
	"the and or but in on at to for of with by from up about into through during " +
		"before after above below between among throughout despite towards upon concerning " +
		"a an as are was were been be have has had do does did will would could should may " +
		"might must can this that these those i you he she it we they them their there " +
		"where when why how what which who whose whom if unless until while although though " +
		"since because so yet nor either neither both all any each every some many much " +
		"more most other another such only own same few little large small next last first " +
		"second new old good bad best better worse worst high higher highest low lower " +
		"lowest big bigger biggest smaller smallest long longer longest short shorter " +
		"shortest early earlier earliest late later latest young younger youngest older " +
		"oldest important less least very quite just still also too not no yes maybe " +
		"perhaps probably definitely certainly surely indeed really truly actually exactly " +
		"precisely approximately roughly around nearly almost rather fairly pretty somewhat " +
		"slightly bit lot several couple pair dozen hundred thousand million billion trillion",
)

func buildStopWords(words string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

// AnalyzeTopicsAndTrends counts pattern or keyword mentions over the
// selected content. Results are sorted by count descending then item
// ascending and truncated to TopN after the MinMentions cut.
func AnalyzeTopicsAndTrends(ctx context.Context, st *store.Store, req *TopicAnalysisRequest) (*TopicAnalysis, error) {
	if req == nil {
		req = &TopicAnalysisRequest{}
	}
	if req.TopN <= 0 {
		req.TopN = 10
	}
	if req.MinMentions <= 0 {
		req.MinMentions = 2
	}
	if req.ContentSource == "" {
		req.ContentSource = "abstracts"
	}

	find := &store.FindTalk{
		CategoryPrimary: req.Category,
		EventName:       req.EventName,
		PublishedAfter:  req.DateFrom,
		PublishedBefore: req.DateTo,
	}
	talks, err := st.ListTalks(ctx, find)
	if err != nil {
		return nil, err
	}

	byTalk, err := collectContent(ctx, st, talks, req.ContentSource)
	if err != nil {
		return nil, err
	}
	var texts []string
	for _, t := range talks {
		texts = append(texts, byTalk[t.ID]...)
	}

	analysis := &TopicAnalysis{
		ChunksAnalyzed: len(texts),
		TalksAnalyzed:  len(talks),
	}
	if len(texts) == 0 {
		analysis.Summary = "no content matched the criteria"
		analysis.Results = []TopicCount{}
		return analysis, nil
	}

	var bank []*regexp.Regexp
	switch req.AnalysisType {
	case "tools":
		bank = toolPatterns
	case "technologies":
		bank = techPatterns
	case "keywords":
		bank = nil
	default: // topics, trends
		bank = topicPatterns
	}

	counts := map[string]int{}
	denominator := len(texts)
	if bank != nil {
		for _, text := range texts {
			lower := strings.ToLower(text)
			for _, re := range bank {
				for _, m := range re.FindAllString(lower, -1) {
					counts[strings.TrimSpace(m)]++
				}
			}
		}
	} else {
		words := wordPattern.FindAllString(strings.ToLower(strings.Join(texts, " ")), -1)
		denominator = len(words)
		for _, w := range words {
			if _, stop := keywordStopWords[w]; stop {
				continue
			}
			counts[w]++
		}
	}

	for item, count := range counts {
		if count < req.MinMentions {
			continue
		}
		pct := 0.0
		if denominator > 0 {
			pct = math.Round(float64(count)/float64(denominator)*1000) / 10
		}
		analysis.Results = append(analysis.Results, TopicCount{Item: item, Count: count, Percentage: pct})
	}
	sort.Slice(analysis.Results, func(i, j int) bool {
		if analysis.Results[i].Count != analysis.Results[j].Count {
			return analysis.Results[i].Count > analysis.Results[j].Count
		}
		return analysis.Results[i].Item < analysis.Results[j].Item
	})
	if len(analysis.Results) > req.TopN {
		analysis.Results = analysis.Results[:req.TopN]
	}
	if analysis.Results == nil {
		analysis.Results = []TopicCount{}
	}
	analysis.TotalItems = len(analysis.Results)

	switch req.TimeGrouping {
	case "yearly", "quarterly", "monthly":
		analysis.Grouping = req.TimeGrouping
		analysis.Trends = trendBuckets(talks, byTalk, analysis.Results, req.TimeGrouping)
	}

	analysis.Summary = req.AnalysisType + " analysis over " + req.ContentSource +
		" (" + strconv.Itoa(len(texts)) + " text units from " + strconv.Itoa(len(talks)) + " talks)"
	return analysis, nil
}

// collectContent gathers the text units the analysis runs over, keyed by
// the talk they belong to.
func collectContent(ctx context.Context, st *store.Store, talks []*store.Talk, source string) (map[string][]string, error) {
	ids := make([]string, 0, len(talks))
	for _, t := range talks {
		ids = append(ids, t.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	byTalk := map[string][]string{}
	if source == "abstracts" || source == "all" {
		metas, err := st.ListTalkMetas(ctx, &store.FindTalkMeta{TalkIDs: ids})
		if err != nil {
			return nil, err
		}
		for _, m := range metas {
			if m.MetaText != "" {
				byTalk[m.TalkID] = append(byTalk[m.TalkID], m.MetaText)
			}
		}
	}
	if source == "transcripts" || source == "all" {
		chunks, err := st.ListTranscriptChunks(ctx, &store.FindTranscriptChunk{TalkIDs: ids})
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			if c.Text != "" {
				byTalk[c.TalkID] = append(byTalk[c.TalkID], c.Text)
			}
		}
	}
	return byTalk, nil
}

// publishPeriod renders one talk's publish date into its bucket label.
func publishPeriod(t time.Time, grouping string) string {
	switch grouping {
	case "yearly":
		return t.Format("2006")
	case "quarterly":
		return t.Format("2006") + "-Q" + strconv.Itoa((int(t.Month())-1)/3+1)
	case "monthly":
		return t.Format("2006-01")
	}
	return ""
}

// trendBuckets counts the top items' mentions per publish period.
func trendBuckets(talks []*store.Talk, byTalk map[string][]string, top []TopicCount, grouping string) []TrendBucket {
	type bucket map[string]int
	byPeriod := map[string]bucket{}

	items := make([]*regexp.Regexp, len(top))
	for i, tc := range top {
		items[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(tc.Item) + `\b`)
	}

	for _, t := range talks {
		if t.PublishedAt.IsZero() {
			continue
		}
		texts := byTalk[t.ID]
		if len(texts) == 0 {
			continue
		}
		period := publishPeriod(t.PublishedAt, grouping)
		lower := strings.ToLower(strings.Join(texts, " "))
		for i, tc := range top {
			n := len(items[i].FindAllStringIndex(lower, -1))
			if n == 0 {
				continue
			}
			if byPeriod[period] == nil {
				byPeriod[period] = bucket{}
			}
			byPeriod[period][tc.Item] += n
		}
	}

	periods := make([]string, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Strings(periods)

	out := make([]TrendBucket, 0, len(periods))
	for _, p := range periods {
		counts := make([]TopicCount, 0, len(byPeriod[p]))
		for item, n := range byPeriod[p] {
			counts = append(counts, TopicCount{Item: item, Count: n})
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].Count != counts[j].Count {
				return counts[i].Count > counts[j].Count
			}
			return counts[i].Item < counts[j].Item
		})
		out = append(out, TrendBucket{Period: p, Counts: counts})
	}
	return out
}

// Unique values --------------------------------------------------------

// UniqueValueFields is the closed set of fields the enumeration serves.
var UniqueValueFields = []string{
	"event_name", "category_primary", "track", "company_name", "tech_level", "industries",
}

// UniqueValues enumerates the distinct values of one talk field, sorted
// case-insensitively. Unknown fields are a validation error.
func UniqueValues(ctx context.Context, st *store.Store, field string) ([]string, error) {
	supported := false
	for _, f := range UniqueValueFields {
		if f == field {
			supported = true
			break
		}
	}
	if !supported {
		return nil, E(KindValidation, "field %q not supported, pick one of %s", field, strings.Join(UniqueValueFields, ", "))
	}

	talks, err := st.ListTalks(ctx, &store.FindTalk{})
	if err != nil {
		return nil, err
	}

	set := map[string]struct{}{}
	for _, t := range talks {
		var v string
		switch field {
		case "event_name":
			v = t.EventName
		case "category_primary":
			v = t.CategoryPrimary
		case "track":
			v = t.Track
		case "company_name":
			v = t.CompanyName
		case "tech_level":
			if t.TechLevel > 0 {
				v = strconv.Itoa(t.TechLevel)
			}
		case "industries":
			v = t.Industries
		}
		if v != "" {
			set[v] = struct{}{}
		}
	}

	values := sortedKeys(set)
	sort.SliceStable(values, func(i, j int) bool {
		return strings.ToLower(values[i]) < strings.ToLower(values[j])
	})
	return values, nil
}
