package models

// GapType classifies a DetectedGap, per §3 and §4.2.
type GapType string

const (
	GapTodoComment              GapType = "TodoComment"
	GapMissingDocumentation     GapType = "MissingDocumentation"
	GapUndocumentedTechnology   GapType = "UndocumentedTechnology"
	GapAPIDocumentationGap      GapType = "ApiDocumentationGap"
)

// DetectedGap is an immutable gap produced by the Gap Detector (C2).
type DetectedGap struct {
	GapType        GapType
	FilePath       string
	Line           int
	Column         *int
	ContextSnippet string
	Description    string
	Confidence     float64
	Priority       int
	Metadata       map[string]string
}

// RelationshipKind classifies how a related document relates to a gap, §4.3.
type RelationshipKind string

const (
	RelationTopical             RelationshipKind = "Topical"
	RelationImplementationPattern RelationshipKind = "ImplementationPattern"
	RelationReference            RelationshipKind = "Reference"
)

// RelatedDocument is one hit returned by a semantic similarity lookup.
type RelatedDocument struct {
	DocID        string
	Similarity   float64
	Relationship RelationshipKind
}

// ValidatedGap is a DetectedGap enriched by the Semantic Validator (C3).
type ValidatedGap struct {
	DetectedGap

	IsValidated          bool
	ValidationConfidence float64
	EnhancedPriority     int
	RelatedDocuments     []RelatedDocument
	QueryUsed            string
	AnalysisMS           int64
	FeaturesUsed         []string
}
