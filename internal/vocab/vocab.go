// Package vocab holds the curated vocabularies used for deterministic job
// posting extraction and snippet scoring. The tables are policy data, not
// algorithm: callers receive a Vocabulary value and may override any table
// from configuration.
package vocab

import "strings"

// Vocabulary bundles the term tables consulted during extraction
type Vocabulary struct {
	TechKeywords   map[string]bool
	ActionVerbs    map[string]bool
	SoftSkills     map[string]bool
	Certifications map[string]bool
	Stopwords      map[string]bool
	// Synonyms maps a variant spelling to its canonical form,
	// e.g. "js" -> "javascript".
	Synonyms map[string]string
}

// Normalize case-folds a term and collapses it to its canonical synonym
func (v *Vocabulary) Normalize(term string) string {
	t := strings.ToLower(strings.TrimSpace(term))
	if canonical, ok := v.Synonyms[t]; ok {
		return canonical
	}
	return t
}

// IsStopword reports whether the (already lowercased) token carries no signal
func (v *Vocabulary) IsStopword(token string) bool {
	return v.Stopwords[token]
}

// IsSkill reports whether the normalized term is a known technical keyword
// or soft skill
func (v *Vocabulary) IsSkill(term string) bool {
	return v.TechKeywords[term] || v.SoftSkills[term]
}

func toSet(terms ...string) map[string]bool {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[t] = true
	}
	return set
}

// Default returns the built-in vocabulary tables
func Default() *Vocabulary {
	return &Vocabulary{
		TechKeywords: toSet(
			// languages
			"python", "java", "javascript", "typescript", "c++", "c#", "ruby", "php",
			"swift", "kotlin", "go", "rust", "scala", "r", "matlab", "perl",
			// databases
			"sql", "nosql", "mysql", "postgresql", "mongodb", "redis", "cassandra",
			"dynamodb", "oracle", "sqlite", "elasticsearch", "neo4j",
			// cloud
			"aws", "azure", "gcp", "heroku", "cloudflare", "s3", "ec2", "lambda",
			"cloudformation", "cloudwatch", "rds", "sagemaker",
			// frameworks
			"react", "angular", "vue", "django", "flask", "fastapi", "spring",
			"express", "node.js", ".net", "rails", "laravel", "next.js",
			// devops
			"docker", "kubernetes", "terraform", "ansible", "jenkins", "gitlab",
			"github", "ci/cd", "git", "linux", "unix", "bash", "nginx",
			// data
			"spark", "hadoop", "kafka", "airflow", "databricks", "snowflake",
			"redshift", "tableau", "powerbi", "looker", "pandas", "numpy",
			// ai/ml
			"tensorflow", "pytorch", "scikit-learn", "keras", "nlp",
			"machine learning", "deep learning", "data science", "computer vision",
			// methodologies and tooling
			"agile", "scrum", "kanban", "devops", "tdd", "salesforce", "sap",
			"jira", "confluence", "excel", "etl", "smartsheet",
			// other
			"api", "rest", "graphql", "microservices", "serverless", "html", "css",
			"webpack", "json", "xml", "yaml", "oauth", "jwt", "saml", "sso",
			"encryption", "security", "compliance", "gdpr",
		),
		ActionVerbs: toSet(
			"led", "managed", "directed", "supervised", "coordinated", "oversaw",
			"mentored", "coached", "trained", "guided", "organized", "facilitated",
			"achieved", "improved", "increased", "decreased", "reduced",
			"accelerated", "optimized", "streamlined", "enhanced", "transformed",
			"exceeded", "delivered", "developed", "created", "designed", "built",
			"engineered", "architected", "established", "launched", "pioneered",
			"spearheaded", "analyzed", "evaluated", "assessed", "identified",
			"researched", "investigated", "forecasted", "planned", "recommended",
			"collaborated", "partnered", "communicated", "presented", "negotiated",
			"influenced", "consulted", "advised", "implemented", "executed",
			"deployed", "integrated", "automated", "configured", "maintained",
			"operated", "administered", "monitored", "resolved",
			// imperative forms common in posting text
			"lead", "manage", "design", "build", "develop", "deliver", "mentor",
			"collaborate", "drive", "own", "ship",
		),
		SoftSkills: toSet(
			"leadership", "communication", "teamwork", "problem-solving",
			"critical thinking", "analytical", "strategic thinking", "creativity",
			"adaptability", "time management", "project management",
			"stakeholder management", "cross-functional", "collaboration",
			"presentation", "negotiation", "decision-making", "conflict resolution",
		),
		Certifications: toSet(
			"aws certified", "azure certified", "gcp certified", "pmp", "cissp",
			"cism", "comptia", "ccna", "ccnp", "ccie", "cka", "ckad",
			"certified scrum master", "csm", "pmi", "itil", "six sigma", "cfa",
			"cpa", "mba", "phd",
		),
		Stopwords: toSet(
			"and", "the", "to", "of", "a", "for", "in", "on", "with", "an", "by",
			"is", "be", "as", "or", "at", "from", "into", "will", "that", "you",
			"we", "our", "your",
		),
		Synonyms: map[string]string{
			"js":                  "javascript",
			"ts":                  "typescript",
			"golang":              "go",
			"postgres":            "postgresql",
			"k8s":                 "kubernetes",
			"nodejs":              "node.js",
			"node":                "node.js",
			"reactjs":             "react",
			"vuejs":               "vue",
			"ml":                  "machine learning",
			"gcloud":              "gcp",
			"amazon web services": "aws",
			"ph.d":                "phd",
			"mongo":               "mongodb",
		},
	}
}
