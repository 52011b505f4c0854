package parser

import "testing"

// Fuzz the parser with arbitrary content to ensure we never panic.
func FuzzParseNoPanic(f *testing.F) {
	seeds := [][]byte{
		[]byte("- hosts: all\n  tasks:\n    - ansible.builtin.ping:\n"),
		[]byte("- name: x\n  block:\n    - debug: msg=hi\n"),
		[]byte("galaxy_info:\n  author: me\n"),
		[]byte("- hosts: [\n"),
		[]byte("garbage-but-should-not-panic\n"),
		[]byte("- hosts: all\n  tasks:\n    - &t\n      name: loop\n      block:\n        - *t\n"),
		[]byte("- hosts: all\n  vars: &v\n    a: [*v]\n  tasks:\n    - &m\n      <<: *m\n"),
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		pb := ParsePlaybook("fuzz.yml", data)
		for _, p := range pb.Plays {
			for _, a := range p.Attrs {
				_ = a.Scalars()
			}
			for _, task := range p.AllTasks() {
				_ = task.ModuleName()
				for _, a := range task.Attrs {
					_ = a.Scalars()
				}
			}
		}
		_ = ParseRoleMeta("roles/fz/meta/main.yml", data)
	})
}
