package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec() DatabaseSpec {
	return DatabaseSpec{
		Project:    "lab-exam-portal",
		ProjectDir: "/home/user/lab-exam-portal",
		Image:      "mongo:7",
		HostPort:   27017,
		DBName:     "lab_exam_portal",
		CreatedAt:  time.Date(2026, 10, 19, 9, 0, 0, 0, time.FixedZone("JST", 9*3600)),
	}
}

func TestBuildLabels(t *testing.T) {
	labels := BuildLabels(testSpec(), 27018)

	assert.Equal(t, ManagedByValue, labels[LabelManagedBy])
	assert.Equal(t, "lab-exam-portal", labels[LabelProject])
	assert.Equal(t, "/home/user/lab-exam-portal", labels[LabelProjectDir])
	assert.Equal(t, "27018", labels[LabelHostPort], "the allocated port is recorded, not the preferred one")
	assert.Equal(t, "lab_exam_portal", labels[LabelDBName])
	assert.Equal(t, "2026-10-19T00:00:00Z", labels[LabelCreatedAt], "timestamps are stored in UTC")
	assert.Len(t, labels, 6)
}

func TestDatabaseSpec_Names(t *testing.T) {
	spec := testSpec()
	assert.Equal(t, "lab-exam-portal-mongo", spec.Name())
	assert.Equal(t, "lab-exam-portal-mongo-data", spec.VolumeName())

	spec.ContainerName = "exam-db"
	assert.Equal(t, "exam-db", spec.Name())
	assert.Equal(t, "exam-db-data", spec.VolumeName())
}

func TestParseLabels(t *testing.T) {
	inst, err := ParseLabels(BuildLabels(testSpec(), 27018))
	require.NoError(t, err)

	assert.Equal(t, "lab-exam-portal", inst.Project)
	assert.Equal(t, 27018, inst.HostPort)
	assert.Equal(t, "lab_exam_portal", inst.DBName)
	assert.Equal(t, "mongodb://localhost:27018/lab_exam_portal", inst.ConnectionURI())
}

func TestParseLabels_MissingRequired(t *testing.T) {
	testCases := []struct {
		name       string
		missingKey string
	}{
		{"missing managed-by", LabelManagedBy},
		{"missing project", LabelProject},
		{"missing host-port", LabelHostPort},
		{"missing db-name", LabelDBName},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			labels := BuildLabels(testSpec(), 27017)
			delete(labels, tc.missingKey)

			_, err := ParseLabels(labels)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.missingKey)
		})
	}
}

func TestParseLabels_Invalid(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"foreign manager", LabelManagedBy, "someone-else", "unexpected value"},
		{"non-numeric port", LabelHostPort, "mongo", "invalid label"},
		{"port out of range", LabelHostPort, "70000", "out of range"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			labels := BuildLabels(testSpec(), 27017)
			labels[tc.key] = tc.value

			_, err := ParseLabels(labels)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestProjectFilter(t *testing.T) {
	assert.Equal(t, []string{"labportal.managed-by=portal-setup"}, projectFilter(""))
	assert.Equal(t,
		[]string{"labportal.managed-by=portal-setup", "labportal.project=demo"},
		projectFilter("demo"),
	)
}
