package migrations

import "testing"

func TestMigrationsRegisteredInOrder(t *testing.T) {
	sorted := Migrations.Sorted()

	want := []struct{ name, comment string }{
		{name: "00001", comment: "appointments"},
		{name: "00002", comment: "appointment_version"},
	}
	if len(sorted) != len(want) {
		t.Fatalf("migrations = %d, want %d", len(sorted), len(want))
	}
	for i, w := range want {
		m := sorted[i]
		if m.Name != w.name || m.Comment != w.comment {
			t.Fatalf("migration %d = %s_%s, want %s_%s", i, m.Name, m.Comment, w.name, w.comment)
		}
		if m.Up == nil || m.Down == nil {
			t.Fatalf("migration %s missing up or down", m.Name)
		}
	}
}
