package resource

import "testing"

func TestCloneDeepCopiesMetadata(t *testing.T) {
	orig := MessageBody{ID: "f1", Metadata: []byte(`{"a":1}`)}
	clone := orig.Clone()

	clone.Metadata[2] = 'X'
	if string(orig.Metadata) == string(clone.Metadata) {
		t.Fatal("Clone() must deep-copy Metadata so mutating the clone doesn't affect the original")
	}
}

func TestCloneNilMetadataStaysNil(t *testing.T) {
	orig := MessageBody{ID: "f1"}
	clone := orig.Clone()
	if clone.Metadata != nil {
		t.Fatalf("Clone() of a nil Metadata body should stay nil, got %v", clone.Metadata)
	}
}
