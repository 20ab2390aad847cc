package catalog

import "strings"

// DemoUser is the account the bundled user databases are namespaced under.
const DemoUser = "mock_user"

// DemoGroups returns the demo account's group memberships. Read-only
// variants ("<group>ro") are listed on purpose so namespace dedup gets
// exercised.
func DemoGroups() []string {
	return []string{"kbase", "kbasero", "globalusers", "globalusersro", "demo"}
}

// DemoSeed returns the bundled demo catalog: the analytic databases the
// catalog provider browses plus the namespaced tenant databases the
// workspace provider groups.
func DemoSeed() []SeedDatabase {
	seed := make([]SeedDatabase, 0, len(analyticDatabases)+len(tenantDatabases))
	for _, spec := range analyticDatabases {
		db := SeedDatabase{Name: spec.name}
		for _, table := range spec.tables {
			db.Tables = append(db.Tables, SeedTable{Name: table, Columns: clinicalColumns(table)})
		}
		seed = append(seed, db)
	}
	for _, spec := range tenantDatabases {
		db := SeedDatabase{Name: spec.name}
		for _, table := range spec.tables {
			db.Tables = append(db.Tables, SeedTable{Name: table, Columns: tenantColumns(table)})
		}
		seed = append(seed, db)
	}
	return seed
}

type seedSpec struct {
	name   string
	tables []string
}

var analyticDatabases = []seedSpec{
	{"CDM_Database", []string{
		"person", "visit_occurrence", "visit_detail", "condition_occurrence",
		"drug_exposure", "procedure_occurrence", "device_exposure",
		"measurement", "observation", "death", "note", "note_nlp", "specimen",
		"fact_relationship", "location", "care_site", "provider",
		"payer_plan_period", "cost", "drug_era", "dose_era", "condition_era",
	}},
	{"Vocabulary", []string{
		"concept", "concept_ancestor", "concept_relationship",
		"concept_synonym", "vocabulary", "domain", "concept_class",
		"relationship", "source_to_concept_map", "drug_strength",
	}},
	{"Results", []string{
		"cohort", "cohort_definition", "cohort_definition_inclusion",
		"cohort_definition_inclusion_stats", "cohort_summary_stats",
		"cohort_censor_stats", "cohort_inclusion_result",
		"cohort_inclusion_stats",
	}},
	{"Genomics", []string{
		"genomic_info", "variant_occurrence", "variant_annotation",
		"gene_expression", "mutation", "copy_number_variation",
		"structural_variant", "pharmacogenomics",
	}},
	{"Clinical_Trials", []string{
		"trial", "trial_arm", "trial_participant", "trial_outcome",
		"adverse_event", "protocol_deviation", "enrollment_criteria",
	}},
	{"Imaging", []string{
		"imaging_study", "imaging_series", "imaging_instance",
		"dicom_metadata", "image_annotation", "radiology_report",
	}},
	{"Laboratory", []string{
		"lab_test_catalog", "lab_result", "lab_panel", "reference_range",
		"lab_quality_control", "microbiology_culture", "pathology_report",
	}},
	{"Administrative", []string{
		"insurance_claim", "billing_code", "reimbursement",
		"facility_location", "staff_assignment", "system_audit_log",
		"data_quality_metrics",
	}},
	{"Research_Datasets", []string{
		"biobank_specimen", "research_cohort", "study_protocol",
		"data_sharing_agreement", "ethics_approval", "publication_link",
		"external_dataset_link",
	}},
}

var tenantDatabases = []seedSpec{
	{"u_" + DemoUser + "__scratch", []string{
		"experiment_results", "temp_analysis", "notes",
	}},
	{"u_" + DemoUser + "__my_project", []string{
		"samples", "measurements", "analysis_runs", "plots",
	}},
	{"kbase_cdm", []string{
		"person", "visit_occurrence", "visit_detail", "condition_occurrence",
		"drug_exposure", "procedure_occurrence", "device_exposure",
		"measurement", "observation", "death", "note", "specimen",
	}},
	{"kbase_vocabulary", []string{
		"concept", "concept_ancestor", "concept_relationship",
		"concept_synonym", "vocabulary", "domain", "concept_class",
		"relationship",
	}},
	{"kbase_genomics", []string{
		"genomic_info", "variant_occurrence", "variant_annotation",
		"gene_expression", "mutation",
	}},
	{"globalusers_shared_data", []string{
		"public_datasets", "reference_genomes", "annotation_tracks",
	}},
	{"globalusers_demo_shared", []string{
		"tenant_test_table", "sample_data",
	}},
	{"demo_clinical_trials", []string{
		"trial", "trial_arm", "trial_participant", "trial_outcome",
		"adverse_event",
	}},
	{"demo_imaging", []string{
		"imaging_study", "imaging_series", "dicom_metadata",
		"radiology_report",
	}},
	{"demo_laboratory", []string{
		"lab_test_catalog", "lab_result", "lab_panel", "reference_range",
	}},
}

// clinicalColumns is the column layout the analytic tables share: surrogate
// key, person reference, concept and date pair, then bookkeeping columns.
// Tables whose surrogate collides with a shared column (person, concept,
// provider, visit_occurrence) keep the key's definition.
func clinicalColumns(table string) []Column {
	surrogate := table + "_id"
	shared := []Column{
		{Name: "person_id", Type: "bigint", ForeignKey: "person.person_id"},
		{Name: "concept_id", Type: "integer"},
		{Name: "start_date", Type: "date"},
		{Name: "end_date", Type: "date", Nullable: true},
		{Name: "type_concept_id", Type: "integer"},
		{Name: "provider_id", Type: "integer", Nullable: true},
		{Name: "visit_occurrence_id", Type: "bigint", Nullable: true},
		{Name: "source_value", Type: "varchar(50)", Nullable: true},
		{Name: "created_date", Type: "timestamp"},
		{Name: "updated_date", Type: "timestamp", Nullable: true},
	}
	cols := []Column{{Name: surrogate, Type: "bigint", PrimaryKey: true}}
	for _, col := range shared {
		if col.Name == surrogate {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

// tenantTableColumns lists column names for the tenant tables that have a
// known layout; anything else falls back to defaultColumns.
var tenantTableColumns = map[string][]string{
	"tenant_test_table":  {"id", "name", "age"},
	"sample_data":        {"id", "value", "timestamp"},
	"notes":              {"id", "title", "content", "created_at"},
	"samples":            {"sample_id", "name", "source", "collection_date", "status"},
	"measurements":       {"measurement_id", "sample_id", "metric", "value", "unit", "recorded_at"},
	"analysis_runs":      {"run_id", "name", "parameters", "status", "started_at", "completed_at"},
	"experiment_results": {"result_id", "experiment_name", "outcome", "notes", "created_at"},
	"person":             {"person_id", "gender_concept_id", "year_of_birth", "race_concept_id", "ethnicity_concept_id"},
	"visit_occurrence":   {"visit_occurrence_id", "person_id", "visit_concept_id", "visit_start_date", "visit_end_date", "visit_type_concept_id"},
	"condition_occurrence": {
		"condition_occurrence_id", "person_id", "condition_concept_id",
		"condition_start_date", "condition_end_date",
	},
	"drug_exposure": {
		"drug_exposure_id", "person_id", "drug_concept_id",
		"drug_exposure_start_date", "drug_exposure_end_date", "quantity",
	},
	"measurement": {
		"measurement_id", "person_id", "measurement_concept_id",
		"measurement_date", "value_as_number", "unit_concept_id",
	},
	"concept": {
		"concept_id", "concept_name", "domain_id", "vocabulary_id",
		"concept_class_id", "concept_code",
	},
	"concept_ancestor": {
		"ancestor_concept_id", "descendant_concept_id",
		"min_levels_of_separation", "max_levels_of_separation",
	},
	"vocabulary":         {"vocabulary_id", "vocabulary_name", "vocabulary_reference", "vocabulary_version"},
	"variant_occurrence": {"variant_id", "person_id", "chromosome", "position", "reference", "alternate", "quality"},
	"gene_expression":    {"expression_id", "person_id", "gene_symbol", "expression_value", "sample_type"},
}

var defaultColumns = []string{"id", "name", "description", "created_at", "updated_at"}

func tenantColumns(table string) []Column {
	names, ok := tenantTableColumns[table]
	if !ok {
		names = defaultColumns
	}
	cols := make([]Column, 0, len(names))
	for i, name := range names {
		cols = append(cols, Column{
			Name:       name,
			Type:       columnType(name),
			Nullable:   i > 0,
			PrimaryKey: i == 0,
		})
	}
	return cols
}

// columnType guesses a demo column type from its name.
func columnType(name string) string {
	switch {
	case strings.HasSuffix(name, "_concept_id"):
		return "integer"
	case name == "id" || strings.HasSuffix(name, "_id"):
		return "bigint"
	case strings.HasSuffix(name, "_date"):
		return "date"
	case strings.HasSuffix(name, "_at") || name == "timestamp":
		return "timestamp"
	case strings.HasSuffix(name, "_value") || strings.HasSuffix(name, "_number") || name == "value" || name == "quality":
		return "double"
	case name == "age" || name == "year_of_birth" || strings.HasSuffix(name, "_of_separation"):
		return "integer"
	case name == "position" || name == "quantity":
		return "bigint"
	default:
		return "varchar"
	}
}
