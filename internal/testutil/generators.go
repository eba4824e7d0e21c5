package testutil

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"math/rand"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/storageapi"
)

// TestDataGenerator provides methods for generating test data.
type TestDataGenerator struct {
	rand *rand.Rand
}

// NewTestDataGenerator creates a new test data generator with a seeded random source.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// GeneratePartData generates a random part payload of the given size.
func (g *TestDataGenerator) GeneratePartData(size int) []byte {
	data := make([]byte, size)
	g.rand.Read(data)
	return data
}

// GenerateUploadSummaries generates in-progress upload summaries with
// sequential upload ids.
func (g *TestDataGenerator) GenerateUploadSummaries(count int, object string) []storageapi.MultipartUploadSummary {
	summaries := make([]storageapi.MultipartUploadSummary, count)
	baseTime := time.Now().Add(-24 * time.Hour)

	for i := 0; i < count; i++ {
		summaries[i] = storageapi.MultipartUploadSummary{
			Object:      object,
			UploadID:    fmt.Sprintf("upload-%04d", i),
			TimeCreated: baseTime.Add(time.Duration(i) * time.Minute),
		}
	}

	return summaries
}

// GeneratePartSummaries generates stored part summaries numbered from 1.
func (g *TestDataGenerator) GeneratePartSummaries(count int) []storageapi.PartSummary {
	summaries := make([]storageapi.PartSummary, count)

	for i := 0; i < count; i++ {
		summaries[i] = storageapi.PartSummary{
			PartNumber: int32(i + 1),
			ETag:       fmt.Sprintf(`"%x"`, g.rand.Int63()),
			Size:       int64(g.rand.Intn(1000000) + 1000),
		}
	}

	return summaries
}

// GenerateTestBucketName generates a unique bucket name for integration tests.
func GenerateTestBucketName(prefix string) string {
	return fmt.Sprintf("%s-test-%d", prefix, time.Now().UnixNano())
}

// GenerateTestKey generates a unique object key for integration tests.
func GenerateTestKey(prefix string) string {
	return fmt.Sprintf("%s/object-%d.bin", prefix, time.Now().UnixNano())
}

// GenerateRandomData generates random bytes for test payloads.
func GenerateRandomData(size int) []byte {
	data := make([]byte, size)
	rand.New(rand.NewSource(time.Now().UnixNano())).Read(data)
	return data
}

// Base64MD5 computes the base64 MD5 content digest the storage service
// expects for integrity checks.
func Base64MD5(data []byte) string {
	sum := md5.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}
