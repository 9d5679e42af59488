package models

import "strings"

// Set-valued criteria keep insertion order and compare case-insensitively,
// so "bmw" and "BMW" are the same member.

func sameValue[T ~string](a, b T) bool {
	return strings.EqualFold(string(a), string(b))
}

// ContainsValue reports whether v is a member of list.
func ContainsValue[T ~string](list []T, v T) bool {
	for _, item := range list {
		if sameValue(item, v) {
			return true
		}
	}
	return false
}

// AppendUnique appends each value not already present. The input slice is
// never modified in place.
func AppendUnique[T ~string](list []T, vs ...T) []T {
	out := cloneSlice(list)
	for _, v := range vs {
		if !ContainsValue(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// RemoveValue returns list without v. The result is nil when empty.
func RemoveValue[T ~string](list []T, v T) []T {
	var out []T
	for _, item := range list {
		if !sameValue(item, v) {
			out = append(out, item)
		}
	}
	return out
}

// Subtract returns the members of list not present in minus, in list order.
func Subtract[T ~string](list, minus []T) []T {
	var out []T
	for _, item := range list {
		if !ContainsValue(minus, item) {
			out = append(out, item)
		}
	}
	return out
}

// Intersect returns the members of a also present in b, in a's order.
func Intersect[T ~string](a, b []T) []T {
	var out []T
	for _, item := range a {
		if ContainsValue(b, item) {
			out = append(out, item)
		}
	}
	return out
}
