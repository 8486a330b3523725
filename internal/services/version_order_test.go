package services

import (
	"testing"
	"time"

	"github.com/razmetka/server/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestVersionSortKey(t *testing.T) {
	tests := []struct {
		name          string
		label         string
		expectedMajor int
		expectedMinor int
	}{
		{name: "Простая числовая метка", label: "v1.0", expectedMajor: 1, expectedMinor: 0},
		{name: "Минорная версия", label: "v2.5", expectedMajor: 2, expectedMinor: 5},
		{name: "Двузначный major", label: "v10.0", expectedMajor: 10, expectedMinor: 0},
		{name: "Без префикса v", label: "3.1", expectedMajor: 3, expectedMinor: 1},
		{name: "Заглавный префикс", label: "V4.2", expectedMajor: 4, expectedMinor: 2},
		{name: "Без минорной части", label: "v7", expectedMajor: 7, expectedMinor: 0},
		{name: "Метка working", label: "working", expectedMajor: pseudoMajorWorking, expectedMinor: 0},
		{name: "Метка draft", label: "draft", expectedMajor: pseudoMajorDraft, expectedMinor: 0},
		{name: "Мусорная метка", label: "release-candidate", expectedMajor: 0, expectedMinor: 0},
		{name: "Пустая метка", label: "", expectedMajor: 0, expectedMinor: 0},
		{name: "Отрицательный major", label: "v-1.0", expectedMajor: 0, expectedMinor: 0},
		{name: "Мусор в minor", label: "v1.x", expectedMajor: 0, expectedMinor: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			major, minor := VersionSortKey(tt.label)
			assert.Equal(t, tt.expectedMajor, major)
			assert.Equal(t, tt.expectedMinor, minor)
		})
	}
}

func TestCompareVersionNumbers(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected int
	}{
		{name: "v1.0 старше v2.0", a: "v1.0", b: "v2.0", expected: -1},
		{name: "v2.0 старше v10.0 (числовое сравнение)", a: "v2.0", b: "v10.0", expected: -1},
		{name: "v10.0 старше draft", a: "v10.0", b: "draft", expected: -1},
		{name: "draft старше working", a: "draft", b: "working", expected: -1},
		{name: "Минорные версии", a: "v1.2", b: "v1.10", expected: -1},
		{name: "Равные метки", a: "v3.1", b: "v3.1", expected: 0},
		{name: "Обратный порядок", a: "working", b: "v99.9", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompareVersionNumbers(tt.a, tt.b))
			// Антисимметричность
			assert.Equal(t, -tt.expected, CompareVersionNumbers(tt.b, tt.a))
		})
	}
}

func TestSortVersionsLatestFirst(t *testing.T) {
	mk := func(label string, createdAt time.Time) models.AnnotationVersion {
		return models.AnnotationVersion{VersionNumber: label, CreatedAt: createdAt}
	}
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Полный порядок: working > draft > v10.0 > v2.0 > v1.0", func(t *testing.T) {
		versions := []models.AnnotationVersion{
			mk("v10.0", base),
			mk("v1.0", base),
			mk("working", base),
			mk("v2.0", base),
			mk("draft", base),
		}

		SortVersionsLatestFirst(versions)

		labels := make([]string, len(versions))
		for i := range versions {
			labels[i] = versions[i].VersionNumber
		}
		assert.Equal(t, []string{"working", "draft", "v10.0", "v2.0", "v1.0"}, labels)
	})

	t.Run("Равные ключи упорядочены по времени создания", func(t *testing.T) {
		versions := []models.AnnotationVersion{
			mk("garbage-a", base),
			mk("garbage-b", base.Add(time.Hour)),
		}

		SortVersionsLatestFirst(versions)

		assert.Equal(t, "garbage-b", versions[0].VersionNumber)
		assert.Equal(t, "garbage-a", versions[1].VersionNumber)
	})
}
