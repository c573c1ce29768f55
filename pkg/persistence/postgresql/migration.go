package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE targets (
				id UUID PRIMARY KEY,
				url TEXT NOT NULL UNIQUE,
				name VARCHAR(255) NOT NULL DEFAULT '',
				target_type VARCHAR(50) NOT NULL CHECK (target_type IN ('profile', 'company', 'generic_site')),
				frequency_seconds BIGINT NOT NULL CHECK (frequency_seconds >= 60),
				active BOOLEAN NOT NULL DEFAULT true,
				recipients JSONB NOT NULL DEFAULT '[]',
				last_checked TIMESTAMP WITH TIME ZONE,
				last_content TEXT NOT NULL DEFAULT '',
				next_check_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_targets_due ON targets(next_check_at) WHERE active;
		`,
		2: `
			CREATE TABLE change_entries (
				id UUID PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				target_id VARCHAR(255) NOT NULL DEFAULT '',
				target_url TEXT NOT NULL,
				target_type VARCHAR(50) NOT NULL,
				before_content TEXT NOT NULL,
				after_content TEXT NOT NULL,
				summary TEXT NOT NULL,
				method VARCHAR(50) NOT NULL DEFAULT '',
				detected_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_change_entries_target ON change_entries(target_url, detected_at DESC);

			CREATE TABLE audit_records (
				workflow_id VARCHAR(255) PRIMARY KEY,
				target_id VARCHAR(255) NOT NULL DEFAULT '',
				target_url TEXT NOT NULL,
				target_type VARCHAR(50) NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE NOT NULL,
				success BOOLEAN NOT NULL,
				error JSONB,
				changes_count INTEGER NOT NULL DEFAULT 0,
				retry_count INTEGER NOT NULL DEFAULT 0,
				final_step VARCHAR(50) NOT NULL,
				duration_ms BIGINT NOT NULL DEFAULT 0,
				content_length INTEGER NOT NULL DEFAULT 0,
				CHECK (completed_at >= started_at)
			);

			CREATE INDEX idx_audit_records_target ON audit_records(target_url, started_at DESC);
		`,
	}
}
