// pkg/shape/persist_test.go
package shape

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadShape_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
	}{
		{"Sphere", NewSphere(0.75)},
		{"Plane", NewInfinitePlane(mgl64.Vec3{0, 1, 0}, -2)},
		{"Ray", &Ray{}},
		{"ConvexMesh", NewConvexMesh(unitCubePoints())},
		{"MultiSphere", capsule()},
		{"TriangleMesh", NewTriangleMesh(
			[]mgl64.Vec3{{-1, 0, -1}, {1, 0, -1}, {1, 0, 1}, {-1, 0, 1}},
			[]uint32{0, 2, 1, 0, 3, 2},
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var first bytes.Buffer
			require.NoError(t, WriteShape(&first, tt.shape))

			read, st := ReadShape(bytes.NewReader(first.Bytes()))
			require.Equal(t, StatusOK, st)
			assert.Equal(t, tt.shape.Type(), read.Type())

			var second bytes.Buffer
			require.NoError(t, WriteShape(&second, read))
			assert.Equal(t, first.Bytes(), second.Bytes())
		})
	}
}

func TestConvexMesh_PersistenceIdempotent(t *testing.T) {
	points := append(unitCubePoints(), mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0.25, 0.25, 0.25})
	original := NewConvexMesh(points)

	var buf bytes.Buffer
	require.NoError(t, original.Write(&buf))

	restored := &ConvexMesh{}
	require.Equal(t, StatusOK, restored.Read(bytes.NewReader(buf.Bytes())))

	assert.Equal(t, original.Vertices, restored.Vertices)
	require.Len(t, restored.Faces, len(original.Faces))
	for i := range original.Faces {
		assert.Equal(t, original.Faces[i].Indices, restored.Faces[i].Indices)
	}
	assert.Equal(t, original.Edges, restored.Edges)
}

func TestReadShape_Malformed(t *testing.T) {
	var sphere bytes.Buffer
	require.NoError(t, WriteShape(&sphere, NewSphere(1)))

	var mesh bytes.Buffer
	require.NoError(t, WriteShape(&mesh, NewTriangleMesh([]mgl64.Vec3{{0, 0, 0}}, []uint32{0, 0, 5})))

	var flat bytes.Buffer
	require.NoError(t, WriteShape(&flat, &ConvexMesh{Vertices: []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}}))

	tests := []struct {
		name string
		data []byte
		want Status
	}{
		{"Empty", nil, StatusTruncated},
		{"TagOnly", sphere.Bytes()[:4], StatusTruncated},
		{"PartialFloat", sphere.Bytes()[:6], StatusTruncated},
		{"UnknownTag", []byte{99, 0, 0, 0}, StatusUnknownType},
		{"IndexOutOfRange", mesh.Bytes(), StatusInvalid},
		{"CoplanarHull", flat.Bytes(), StatusInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, st := ReadShape(bytes.NewReader(tt.data))
			assert.Equal(t, tt.want, st)
			assert.Nil(t, s)
		})
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "truncated", StatusTruncated.String())
	assert.Equal(t, "unknown type", StatusUnknownType.String())
	assert.Equal(t, "status(42)", Status(42).String())
}
