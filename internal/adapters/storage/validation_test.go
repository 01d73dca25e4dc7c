package storage

import "testing"

func TestValidateObjectKey(t *testing.T) {
	valid := []string{"requests/tap.jpg", "requests/2026/10/kitchen.PNG", "photo.webp"}
	for _, key := range valid {
		if err := ValidateObjectKey(key); err != nil {
			t.Errorf("%q: unexpected error %v", key, err)
		}
	}

	invalid := []string{"", "/etc/passwd.jpg", "../secret.png", "requests/../../x.jpg", "requests//tap.jpg", "report.pdf", "dir\\tap.jpg"}
	for _, key := range invalid {
		if err := ValidateObjectKey(key); err == nil {
			t.Errorf("%q: expected error", key)
		}
	}
}
