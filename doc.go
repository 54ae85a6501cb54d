/*
Package reqassert checks that code under test makes exactly the outbound HTTP requests a
test expects, in the expected order, and answers each of them with a canned response.

Expectations are declared up front with the expect package. While the test body runs,
calls are intercepted and recorded. Once it returns, each expected request is paired with
the call made at the same position and compared field by field. Every position is reported
as its own sub-test, so a single run shows every mismatch.

As a decorator around a test function:

	func TestGetLikes(t *testing.T) {
		t.Run("likes", reqassert.Wrap([]expect.Request{
			expect.Post("http://my.site/login").
				WithJSON(map[string]string{"username": "the name"}).
				RespondJSON(http.StatusOK, map[string]string{"access_token": "the-token"}),
			expect.Get("http://my.site/posts/3").
				WithHeadersContaining(map[string]string{"Authorization": "Bearer the-token"}).
				RespondJSON(http.StatusOK, map[string]int{"likes": 42}),
		}, func(t *testing.T, client *http.Client) error {
			likes, err := getLikes(client, "the name", 3)
			assert.Check(t, cmp.Equal(likes, 42))
			return err
		}))
	}

Or scoped, given the test explicitly, with reqassert.With. For full control over the
lifecycle use New with a Reporter and drive the Scope with Enter and Exit, or Run.
*/
package reqassert
