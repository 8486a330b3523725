package services

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/razmetka/server/internal/models"
)

// Псевдостаршинство виртуальных меток: working сортируется позже любых
// числовых версий, draft - сразу перед working.
const (
	pseudoMajorWorking = math.MaxInt32
	pseudoMajorDraft   = math.MaxInt32 - 1
)

// VersionSortKey возвращает ключ сортировки (major, minor) для метки версии.
// Числовые метки вида "v<major>.<minor>" сравниваются как пара целых чисел,
// а не как строки, поэтому "v10.0" старше "v2.0". Неразборчивые метки
// считаются самыми старыми - (0, 0) - чтобы одна испорченная метка
// не ломала сортировку остальных.
func VersionSortKey(label string) (int, int) {
	switch label {
	case models.VersionLabelWorking:
		return pseudoMajorWorking, 0
	case models.VersionLabelDraft:
		return pseudoMajorDraft, 0
	}

	s := strings.TrimPrefix(strings.TrimPrefix(label, "v"), "V")
	majorStr, minorStr, hasMinor := strings.Cut(s, ".")

	major, err := strconv.Atoi(majorStr)
	if err != nil || major < 0 {
		return 0, 0
	}
	if !hasMinor {
		return major, 0
	}
	minor, err := strconv.Atoi(minorStr)
	if err != nil || minor < 0 {
		return 0, 0
	}
	return major, minor
}

// CompareVersionNumbers задает полный порядок на метках версий:
// -1 если a старше (меньше), +1 если a новее, 0 при равенстве ключей.
func CompareVersionNumbers(a, b string) int {
	aMajor, aMinor := VersionSortKey(a)
	bMajor, bMinor := VersionSortKey(b)

	switch {
	case aMajor != bMajor:
		if aMajor < bMajor {
			return -1
		}
		return 1
	case aMinor != bMinor:
		if aMinor < bMinor {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// SortVersionsLatestFirst сортирует версии от новых к старым по ключу метки;
// при равных ключах - по времени создания.
func SortVersionsLatestFirst(versions []models.AnnotationVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		cmp := CompareVersionNumbers(versions[i].VersionNumber, versions[j].VersionNumber)
		if cmp != 0 {
			return cmp > 0
		}
		return versions[i].CreatedAt.After(versions[j].CreatedAt)
	})
}
