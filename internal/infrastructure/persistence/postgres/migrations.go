package postgres

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_catalog_and_people", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_assessments", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_batches_and_reports", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: COURSES, DISCIPLINES, POLES, MANAGERS, STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS courses (
    id UUID PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    start_date TIMESTAMP WITH TIME ZONE NOT NULL,
    end_date TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_course_dates CHECK (end_date >= start_date)
);

CREATE TABLE IF NOT EXISTS disciplines (
    id UUID PRIMARY KEY,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    name VARCHAR(200) NOT NULL,
    key VARCHAR(200) NOT NULL,

    CONSTRAINT uq_discipline_course_key UNIQUE (course_id, key)
);

CREATE TABLE IF NOT EXISTS poles (
    id UUID PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    key VARCHAR(200) NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS managers (
    id UUID PRIMARY KEY,
    name VARCHAR(120) NOT NULL,
    email VARCHAR(254) NOT NULL UNIQUE,
    role VARCHAR(20) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_manager_role CHECK (role IN ('admin', 'secretary', 'manager'))
);

CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    name VARCHAR(120) NOT NULL,
    email VARCHAR(254) NOT NULL UNIQUE,
    cpf CHAR(11) NOT NULL UNIQUE,
    birthday DATE NOT NULL,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS student_courses (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_student_course UNIQUE (student_id, course_id)
);

CREATE INDEX IF NOT EXISTS idx_student_courses_course ON student_courses(course_id);

CREATE TABLE IF NOT EXISTS student_poles (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    pole_id UUID NOT NULL REFERENCES poles(id),
    student_course_id UUID NOT NULL REFERENCES student_courses(id) ON DELETE CASCADE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_student_pole_course UNIQUE (student_id, course_id)
);
`

const migration001Down = `
DROP TABLE IF EXISTS student_poles;
DROP TABLE IF EXISTS student_courses;
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS managers;
DROP TABLE IF EXISTS poles;
DROP TABLE IF EXISTS disciplines;
DROP TABLE IF EXISTS courses;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ASSESSMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS assessments (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    discipline_id UUID NOT NULL REFERENCES disciplines(id) ON DELETE CASCADE,
    vf NUMERIC(4,2) NOT NULL,
    avi NUMERIC(4,2),
    avii NUMERIC(4,2),
    vfe NUMERIC(4,2),
    average NUMERIC(5,2) NOT NULL,
    status VARCHAR(20) NOT NULL,
    is_recovering BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_assessment_key UNIQUE (student_id, course_id, discipline_id),
    CONSTRAINT valid_vf CHECK (vf BETWEEN 0 AND 10),
    CONSTRAINT valid_avi CHECK (avi IS NULL OR avi BETWEEN 0 AND 10),
    CONSTRAINT valid_avii CHECK (avii IS NULL OR (avii BETWEEN 0 AND 10 AND avi IS NOT NULL)),
    CONSTRAINT valid_vfe CHECK (vfe IS NULL OR vfe BETWEEN 0 AND 10),
    CONSTRAINT valid_assessment_status CHECK (status IN ('approved', 'failed', 'recovering'))
);

CREATE INDEX IF NOT EXISTS idx_assessments_course ON assessments(course_id);
`

const migration002Down = `
DROP TABLE IF EXISTS assessments;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: BATCH ARTIFACTS AND REPORTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS assessment_batches (
    id UUID PRIMARY KEY,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    kind VARCHAR(20) NOT NULL,
    actor_id TEXT NOT NULL,
    actor_ip TEXT NOT NULL DEFAULT '',
    file_name TEXT NOT NULL DEFAULT '',
    file_link TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS assessment_batch_items (
    batch_id UUID NOT NULL REFERENCES assessment_batches(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    assessment_id UUID NOT NULL,
    removed TEXT[] NOT NULL DEFAULT '{}',
    before JSONB,

    PRIMARY KEY (batch_id, position)
);

CREATE TABLE IF NOT EXISTS student_batches (
    id UUID PRIMARY KEY,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    kind VARCHAR(20) NOT NULL,
    actor_id TEXT NOT NULL,
    actor_ip TEXT NOT NULL DEFAULT '',
    file_name TEXT NOT NULL DEFAULT '',
    file_link TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS student_batch_items (
    batch_id UUID NOT NULL REFERENCES student_batches(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    student_id UUID NOT NULL,
    new_student BOOLEAN NOT NULL,
    change VARCHAR(20) NOT NULL,
    enrollment_id UUID,
    placement_id UUID,
    previous JSONB,

    PRIMARY KEY (batch_id, position)
);

CREATE TABLE IF NOT EXISTS reports (
    id UUID PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    content TEXT NOT NULL,
    actor_id TEXT NOT NULL,
    actor_ip TEXT NOT NULL DEFAULT '',
    course_id UUID,
    action VARCHAR(20) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC);

CREATE TABLE IF NOT EXISTS report_batches (
    id UUID PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    content TEXT NOT NULL,
    actor_id TEXT NOT NULL,
    actor_ip TEXT NOT NULL DEFAULT '',
    course_id UUID,
    action VARCHAR(20) NOT NULL,
    file_name TEXT NOT NULL DEFAULT '',
    file_link TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_report_batches_created_at ON report_batches(created_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS report_batches;
DROP TABLE IF EXISTS reports;
DROP TABLE IF EXISTS student_batch_items;
DROP TABLE IF EXISTS student_batches;
DROP TABLE IF EXISTS assessment_batch_items;
DROP TABLE IF EXISTS assessment_batches;
`
