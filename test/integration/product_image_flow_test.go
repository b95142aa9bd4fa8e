package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/storefrontlab/storefront-api/internal/domain"
)

// Exercises the image half of the product lifecycle against real MinIO:
// create stores the blob, replacement removes the old blob only after the
// record points at the new one, delete cleans up.
func TestProductImageFlowAgainstMinIO(t *testing.T) {
	env := newMinIOIntegrationEnv(t)
	baseURL, client, closeFn := newAPITestServer(t, env.store)
	defer closeFn()

	registerUser(t, client, baseURL, "images@example.com", "15550100010")
	csrfHeader := map[string]string{"X-CSRF-Token": cookieValue(t, client, baseURL, "csrf_token")}

	resp, body := doMultipart(t, client, http.MethodPost, baseURL+"/api/v1/products", map[string]string{
		"name":  "Camera",
		"price": "199.99",
	}, "camera.jpg", jpegFixtureBytes(), csrfHeader)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", resp.StatusCode, body)
	}
	var created domain.Product
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("unmarshal created: %v", err)
	}
	if created.Image == "" {
		t.Fatalf("expected image path on created product: %s", body)
	}
	if !env.mustObjectExists(t, created.Image) {
		t.Fatalf("blob %s missing after create", created.Image)
	}

	// Replace the image; the old blob must be gone and the record must point
	// at the new one.
	resp, body = doMultipart(t, client, http.MethodPut, fmt.Sprintf("%s/api/v1/products/%d", baseURL, created.ID), nil, "camera2.png", pngFixtureBytes(), csrfHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update image: status=%d body=%s", resp.StatusCode, body)
	}
	var updated domain.Product
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("unmarshal updated: %v", err)
	}
	if updated.Image == "" || updated.Image == created.Image {
		t.Fatalf("expected a new image path, got %q (was %q)", updated.Image, created.Image)
	}
	if env.mustObjectExists(t, created.Image) {
		t.Fatalf("old blob %s should be removed after replacement", created.Image)
	}
	if !env.mustObjectExists(t, updated.Image) {
		t.Fatalf("new blob %s missing", updated.Image)
	}

	// Deleting the product removes its blob.
	resp, body = doJSON(t, client, http.MethodDelete, fmt.Sprintf("%s/api/v1/products/%d", baseURL, created.ID), nil, csrfHeader)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status=%d body=%s", resp.StatusCode, body)
	}
	if env.mustObjectExists(t, updated.Image) {
		t.Fatalf("blob %s should be removed with the product", updated.Image)
	}
}
