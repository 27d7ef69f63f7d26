package types

// Models lists every persisted entity for migrations
func Models() []any {
	return []any{
		&EventCandidate{},
		&Topic{},
		&VerifiedFact{},
		&SourcePlanEntry{},
		&Article{},
		&ArticleRevision{},
		&ArticleEvent{},
		&Correction{},
		&ReviewTask{},
		&RightOfReplyRequest{},
		&SourceReliabilityLogEntry{},
		&MonitorFlag{},
	}
}
