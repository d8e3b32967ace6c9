package store

import (
	"fmt"
	"strings"
)

const (
	hospitalsKey = "hospitals"
	usersKey     = "users"
	sectionsKey  = "sections"
	roomsKey     = "rooms"
	statusesKey  = "statuses"
	timerKey     = "timer"
)

func HospitalPath(hospitalID string) string {
	return JoinPath(hospitalsKey, hospitalID)
}

func UserPath(userID string) string {
	return JoinPath(usersKey, userID)
}

// SectionsPath is the collection of sections owned by one department
func SectionsPath(hospitalID, departmentID string) string {
	return JoinPath(sectionsKey, hospitalID, departmentID)
}

func SectionPath(hospitalID, departmentID, sectionID string) string {
	return JoinPath(sectionsKey, hospitalID, departmentID, sectionID)
}

func RoomsPath(hospitalID, departmentID, sectionID string) string {
	return JoinPath(SectionPath(hospitalID, departmentID, sectionID), roomsKey)
}

func RoomPath(hospitalID, departmentID, sectionID, roomID string) string {
	return JoinPath(RoomsPath(hospitalID, departmentID, sectionID), roomID)
}

// RoomTimerPath is the subtree timer write-backs merge into
func RoomTimerPath(hospitalID, departmentID, sectionID, roomID string) string {
	return JoinPath(RoomPath(hospitalID, departmentID, sectionID, roomID), timerKey)
}

func StatusesPath(hospitalID, departmentID, sectionID string) string {
	return JoinPath(SectionPath(hospitalID, departmentID, sectionID), statusesKey)
}

func StatusPath(hospitalID, departmentID, sectionID, statusID string) string {
	return JoinPath(StatusesPath(hospitalID, departmentID, sectionID), statusID)
}

// JoinPath joins segments with "/" and drops empty ones
func JoinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// SplitPath splits a slash separated key path, ignoring empty segments
func SplitPath(path string) []string {
	raw := strings.Split(path, "/")
	segs := raw[:0]
	for _, s := range raw {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// splitRoot separates the document root (collection/id) from the path inside it.
func splitRoot(path string) (string, []string, error) {
	segs := SplitPath(path)
	if len(segs) < 2 {
		return "", nil, fmt.Errorf("path %q must address at least collection/id", path)
	}
	switch segs[0] {
	case hospitalsKey, usersKey, sectionsKey:
	default:
		return "", nil, fmt.Errorf("path %q: unknown collection %q", path, segs[0])
	}
	return segs[0] + "/" + segs[1], segs[2:], nil
}
