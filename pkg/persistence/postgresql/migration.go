package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Global status catalog
			CREATE TABLE statuses (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL UNIQUE,
				category VARCHAR(50) NOT NULL CHECK (category IN ('todo', 'in_progress', 'done')),
				color VARCHAR(50),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			-- Workflows: live rows plus at most one draft per live row
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_default BOOLEAN NOT NULL DEFAULT FALSE,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				is_draft BOOLEAN NOT NULL DEFAULT FALSE,
				draft_of UUID REFERENCES workflows(id) ON DELETE CASCADE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE
			);

			CREATE UNIQUE INDEX idx_workflows_draft_of ON workflows(draft_of) WHERE draft_of IS NOT NULL;
			CREATE INDEX idx_workflows_is_draft ON workflows(is_draft);

			CREATE TABLE workflow_steps (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				status_id UUID NOT NULL REFERENCES statuses(id),
				is_initial BOOLEAN NOT NULL DEFAULT FALSE,
				position_x INT NOT NULL DEFAULT 0,
				position_y INT NOT NULL DEFAULT 0,
				UNIQUE (workflow_id, status_id)
			);

			CREATE INDEX idx_workflow_steps_workflow_id ON workflow_steps(workflow_id);

			CREATE TABLE workflow_transitions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				from_step_id UUID REFERENCES workflow_steps(id) ON DELETE CASCADE,
				to_step_id UUID NOT NULL REFERENCES workflow_steps(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				conditions JSONB NOT NULL DEFAULT '[]',
				validators JSONB NOT NULL DEFAULT '[]',
				post_functions JSONB NOT NULL DEFAULT '[]'
			);

			CREATE INDEX idx_workflow_transitions_workflow_id ON workflow_transitions(workflow_id);
			CREATE INDEX idx_workflow_transitions_from ON workflow_transitions(from_step_id);

			CREATE TABLE schemes (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_default BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			-- NULL issue_type_id is the wildcard mapping; the partial unique
			-- index keeps it single per scheme.
			CREATE TABLE scheme_mappings (
				scheme_id UUID NOT NULL REFERENCES schemes(id) ON DELETE CASCADE,
				issue_type_id VARCHAR(255),
				workflow_id UUID NOT NULL REFERENCES workflows(id)
			);

			CREATE UNIQUE INDEX idx_scheme_mappings_type ON scheme_mappings(scheme_id, issue_type_id) WHERE issue_type_id IS NOT NULL;
			CREATE UNIQUE INDEX idx_scheme_mappings_wildcard ON scheme_mappings(scheme_id) WHERE issue_type_id IS NULL;

			CREATE TABLE projects (
				id UUID PRIMARY KEY,
				key VARCHAR(50) NOT NULL UNIQUE,
				name VARCHAR(255) NOT NULL,
				lead_id VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE project_scheme_assignments (
				project_id UUID PRIMARY KEY REFERENCES projects(id) ON DELETE CASCADE,
				scheme_id UUID NOT NULL REFERENCES schemes(id),
				assigned_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE issues (
				id UUID PRIMARY KEY,
				project_id UUID NOT NULL REFERENCES projects(id),
				issue_type_id VARCHAR(255) NOT NULL,
				parent_id UUID REFERENCES issues(id),
				status_id UUID NOT NULL REFERENCES statuses(id),
				assignee_id VARCHAR(255) NOT NULL DEFAULT '',
				reporter_id VARCHAR(255) NOT NULL DEFAULT '',
				resolution VARCHAR(255) NOT NULL DEFAULT '',
				summary TEXT NOT NULL,
				fields JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_issues_project_id ON issues(project_id);
			CREATE INDEX idx_issues_parent_id ON issues(parent_id);
			CREATE INDEX idx_issues_status_id ON issues(status_id);

			CREATE TABLE issue_history (
				id UUID PRIMARY KEY,
				issue_id UUID NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
				from_status_id UUID NOT NULL,
				to_status_id UUID NOT NULL,
				transition_id UUID NOT NULL,
				transition_name VARCHAR(255) NOT NULL,
				actor_id VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_issue_history_issue_id ON issue_history(issue_id);
			CREATE INDEX idx_issue_history_created_at ON issue_history(created_at);

			CREATE TABLE issue_comments (
				id UUID PRIMARY KEY,
				issue_id UUID NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
				author_id VARCHAR(255) NOT NULL,
				body TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_issue_comments_issue_id ON issue_comments(issue_id);
		`,
	}
}
