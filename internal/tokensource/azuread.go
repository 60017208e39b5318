package tokensource

import "fmt"

// AzureADScope is the well-known Azure Cognitive Services scope Azure OpenAI
// deployments expect on client-credentials tokens.
const AzureADScope = "https://cognitiveservices.azure.com/.default"

// AzureADTokenURL builds the v2 Azure AD client-credentials token endpoint
// for the given tenant.
func AzureADTokenURL(tenantID string) string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID)
}
